package lancasterlink

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuustard/LancasterLink/config"
	"github.com/cuustard/LancasterLink/disruption"
	"github.com/cuustard/LancasterLink/internal/logger"
	"github.com/cuustard/LancasterLink/metrics"
	"github.com/cuustard/LancasterLink/routing"
	"github.com/cuustard/LancasterLink/snapshot"
	"github.com/cuustard/LancasterLink/tracking"
	"github.com/cuustard/LancasterLink/transit"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	g, err := transit.BuildGraph(transit.Dataset{
		Localities: []transit.Locality{
			{ID: "E0015763", Name: "Lancaster", Region: "North West"},
			{ID: "E0015883", Name: "Preston", Region: "North West"},
		},
		Stops: []transit.Stop{
			{ID: "LAN01", Name: "Lancaster Rail Station", Mode: transit.ModeRail, LocalityID: "E0015763", HubScore: 10},
			{ID: "PRE01", Name: "Preston Rail Station", Mode: transit.ModeRail, LocalityID: "E0015883", HubScore: 8},
		},
		Routes: []transit.Route{
			{ID: "NT-LP", Operator: "Northern", Name: "Lancaster - Preston", Mode: transit.ModeRail},
		},
		Trips: []transit.Trip{
			{ID: "T1", RouteID: "NT-LP", StopTimes: []transit.StopTime{
				{StopID: "LAN01", Seq: 1, Arrival: 540, Departure: 540},
				{StopID: "PRE01", Seq: 2, Arrival: 580, Departure: 580},
			}},
		},
	})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	tracker := disruption.NewTracker(disruption.DefaultSeverityMinutes, logger.Nop())
	store := tracking.NewStore(5*time.Minute, logger.Nop())
	pub := snapshot.NewPublisher(g, tracker, store, 30*time.Second, logger.Nop())
	eng := routing.NewEngine(routing.Options{}, logger.Nop())
	return NewServer(config.ServerConfig{Port: 0}, pub, eng, metrics.NewCollector(), logger.Nop())
}

func get(t *testing.T, s *Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestJourneysEndpoint(t *testing.T) {
	s := testServer(t)
	rec := get(t, s, "/api/journeys?from=LAN01&to=PRE01&at=2026-03-04T08:50:00Z&modes=rail")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp journeysResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Journeys) != 1 {
		t.Fatalf("journeys = %d, want 1", len(resp.Journeys))
	}
	j := resp.Journeys[0]
	if j.Departure != "09:00" || j.Arrival != "09:40" {
		t.Fatalf("journey = %s -> %s, want 09:00 -> 09:40", j.Departure, j.Arrival)
	}
	if len(j.Legs) != 1 || j.Legs[0].Provenance != "scheduled-fallback" {
		t.Fatalf("legs = %+v", j.Legs)
	}
}

func TestJourneysEndpoint_BadRequest(t *testing.T) {
	s := testServer(t)
	cases := []string{
		"/api/journeys?from=LAN01&to=PRE01&modes=hovercraft",
		"/api/journeys?to=PRE01",
		"/api/journeys?from=NOPE&to=PRE01",
		"/api/journeys?from=LAN01&to=PRE01&at=yesterday",
		"/api/journeys?from=LAN01&fromLocality=E0015763&to=PRE01",
	}
	for _, url := range cases {
		rec := get(t, s, url)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", url, rec.Code)
		}
		var resp errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error == "" {
			t.Errorf("%s: no error message in %s", url, rec.Body)
		}
	}
}

func TestJourneysEndpoint_NoRouteIsOK(t *testing.T) {
	s := testServer(t)
	rec := get(t, s, "/api/journeys?from=PRE01&to=LAN01&at=2026-03-04T08:50:00Z")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for no-route", rec.Code)
	}
	var resp journeysResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Journeys) != 0 {
		t.Fatalf("journeys = %+v, want none", resp.Journeys)
	}
}

func TestDeparturesEndpoint(t *testing.T) {
	s := testServer(t)
	rec := get(t, s, "/api/departures?stop=LAN01&at=2026-03-04T08:50:00Z")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp boardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Stop.ID != "LAN01" || len(resp.Departures) != 1 {
		t.Fatalf("board = %+v", resp)
	}
	if resp.Departures[0].Scheduled != "09:00" || resp.Departures[0].Destination.ID != "PRE01" {
		t.Fatalf("entry = %+v", resp.Departures[0])
	}
}

func TestDeparturesEndpoint_UnknownStop(t *testing.T) {
	s := testServer(t)
	rec := get(t, s, "/api/departures?stop=NOPE")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStopSearchEndpoint(t *testing.T) {
	s := testServer(t)
	rec := get(t, s, "/api/stops?name=lanc")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp stopSearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Stops) != 1 || resp.Stops[0].ID != "LAN01" {
		t.Fatalf("stops = %+v, want LAN01", resp.Stops)
	}
	if len(resp.Localities) != 1 || resp.Localities[0].ID != "E0015763" {
		t.Fatalf("localities = %+v, want Lancaster", resp.Localities)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t)
	rec := get(t, s, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" || resp.SnapshotVersion == 0 || resp.GraphStops != 2 {
		t.Fatalf("health = %+v", resp)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/journeys", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
