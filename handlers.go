package lancasterlink

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cuustard/LancasterLink/routing"
)

func (s *Server) handleJourneys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "use GET"})
		return
	}
	q, err := parseJourneyQuery(r)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	snap := s.publisher.Current()
	started := time.Now()
	journeys, err := s.engine.Plan(r.Context(), snap, q)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	if s.collector != nil {
		outcome := "ok"
		if len(journeys) == 0 {
			outcome = "no_route"
		}
		s.collector.ObserveQuery(outcome, time.Since(started))
	}
	writeJSON(w, http.StatusOK, renderJourneys(journeys))
}

func (s *Server) handleDepartures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "use GET"})
		return
	}
	params := r.URL.Query()
	stopID := cleanID(params.Get("stop"))

	at := time.Now()
	if v := params.Get("at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeQueryError(w, &routing.QueryError{Field: "at", Reason: "datetime must be RFC 3339"})
			return
		}
		at = t
	}
	modes, err := parseModes(params.Get("modes"))
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	limit := 10
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeQueryError(w, &routing.QueryError{Field: "limit", Reason: "must be a positive integer"})
			return
		}
		limit = n
	}

	snap := s.publisher.Current()
	stop, ok := snap.Graph.StopByID(stopID)
	if !ok {
		s.writeQueryError(w, &routing.QueryError{Field: "stop", Reason: "unknown stop " + strconv.Quote(stopID)})
		return
	}
	entries, err := routing.Departures(snap, stopID, at, modes, limit)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderBoard(stop, entries))
}

type stopSearchResponse struct {
	Stops      []stopRef `json:"stops"`
	Localities []stopRef `json:"localities"`
}

// handleStopSearch resolves a name prefix to stop and locality ids so
// callers can turn free text into query endpoints.
func (s *Server) handleStopSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "use GET"})
		return
	}
	name := cleanID(r.URL.Query().Get("name"))
	if name == "" {
		s.writeQueryError(w, &routing.QueryError{Field: "name", Reason: "a name prefix is required"})
		return
	}

	snap := s.publisher.Current()
	resp := stopSearchResponse{Stops: []stopRef{}, Localities: []stopRef{}}
	for _, st := range snap.Graph.SearchStops(name, 10) {
		resp.Stops = append(resp.Stops, stopRef{ID: st.ID, Name: st.Name})
	}
	for _, l := range snap.Graph.SearchLocalities(name, 10) {
		resp.Localities = append(resp.Localities, stopRef{ID: l.ID, Name: l.Name})
	}
	writeJSON(w, http.StatusOK, resp)
}
