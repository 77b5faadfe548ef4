package transit

import (
	"errors"
	"testing"
	"time"
)

func testDataset(t *testing.T) Dataset {
	t.Helper()
	return Dataset{
		Localities: []Locality{
			{ID: "E0015763", Name: "Lancaster", Region: "North West", Lat: 54.047, Lon: -2.801},
			{ID: "E0015821", Name: "Preston", Region: "North West", Lat: 53.756, Lon: -2.703},
		},
		Stops: []Stop{
			{ID: "LAN01", Name: "Lancaster Rail Station", Mode: ModeRail, Lat: 54.048, Lon: -2.807, LocalityID: "E0015763", HubScore: 10},
			{ID: "LANBUS01", Name: "Lancaster Bus Station", Mode: ModeBus, Lat: 54.050, Lon: -2.797, LocalityID: "E0015763"},
			{ID: "PRE01", Name: "Preston Rail Station", Mode: ModeRail, Lat: 53.756, Lon: -2.708, LocalityID: "E0015821", HubScore: 8},
		},
		Routes: []Route{
			{ID: "NT-LP", Operator: "Northern", Name: "Lancaster - Preston", Mode: ModeRail},
			{ID: "SC-40", Operator: "Stagecoach", Name: "40", Mode: ModeBus},
		},
		Trips: []Trip{
			{
				ID: "T1", RouteID: "NT-LP",
				StopTimes: []StopTime{
					{StopID: "LAN01", Seq: 1, Arrival: 9 * 60, Departure: 9 * 60},
					{StopID: "PRE01", Seq: 2, Arrival: 9*60 + 40, Departure: 9*60 + 40},
				},
			},
			{
				ID: "T2", RouteID: "SC-40",
				StopTimes: []StopTime{
					{StopID: "LANBUS01", Seq: 1, Arrival: 9*60 + 5, Departure: 9*60 + 5},
					{StopID: "PRE01", Seq: 2, Arrival: 9*60 + 45, Departure: 9*60 + 45},
				},
			},
		},
		Walks: []WalkingConnection{
			{FromStop: "LAN01", ToStop: "LANBUS01", WalkMinutes: 3, DistanceM: 240},
		},
	}
}

func mustBuild(t *testing.T, ds Dataset) *Graph {
	t.Helper()
	g, err := BuildGraph(ds)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	return g
}

func TestBuildGraph_Valid(t *testing.T) {
	g := mustBuild(t, testDataset(t))

	if g.StopCount() != 3 || g.TripCount() != 2 {
		t.Fatalf("unexpected graph size: %d stops, %d trips", g.StopCount(), g.TripCount())
	}
	lan, ok := g.StopByID("LAN01")
	if !ok {
		t.Fatal("LAN01 missing")
	}
	if lan.HubScore != 10 {
		t.Errorf("pipeline-supplied hub score should be kept, got %v", lan.HubScore)
	}
	// LANBUS01 had no score: one route calls there plus two walking links
	// (the record and its mirror both leave from it only once).
	bus, _ := g.StopByID("LANBUS01")
	if bus.HubScore <= 0 {
		t.Errorf("derived hub score should be positive, got %v", bus.HubScore)
	}
	if g.MaxHubScore() != 10 {
		t.Errorf("max hub score = %v, want 10", g.MaxHubScore())
	}
}

func TestBuildGraph_StructuralErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Dataset)
	}{
		{"duplicate stop", func(ds *Dataset) {
			ds.Stops = append(ds.Stops, Stop{ID: "LAN01", Name: "dup", Mode: ModeBus})
		}},
		{"unknown locality", func(ds *Dataset) {
			ds.Stops[0].LocalityID = "nowhere"
		}},
		{"trip references unknown stop", func(ds *Dataset) {
			ds.Trips[0].StopTimes[1].StopID = "GHOST"
		}},
		{"trip references unknown route", func(ds *Dataset) {
			ds.Trips[0].RouteID = "GHOST"
		}},
		{"stop sequence not strictly increasing", func(ds *Dataset) {
			ds.Trips[0].StopTimes[1].Seq = ds.Trips[0].StopTimes[0].Seq
		}},
		{"departure before arrival", func(ds *Dataset) {
			ds.Trips[0].StopTimes[0].Departure = ds.Trips[0].StopTimes[0].Arrival - 1
		}},
		{"validity window inverted", func(ds *Dataset) {
			ds.Trips[0].ValidFrom = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
			ds.Trips[0].ValidTo = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		}},
		{"single-stop trip", func(ds *Dataset) {
			ds.Trips[0].StopTimes = ds.Trips[0].StopTimes[:1]
		}},
		{"walking self-loop", func(ds *Dataset) {
			ds.Walks = append(ds.Walks, WalkingConnection{FromStop: "LAN01", ToStop: "LAN01", WalkMinutes: 1})
		}},
		{"walking to unknown stop", func(ds *Dataset) {
			ds.Walks = append(ds.Walks, WalkingConnection{FromStop: "LAN01", ToStop: "GHOST", WalkMinutes: 1})
		}},
		{"walking zero minutes", func(ds *Dataset) {
			ds.Walks = append(ds.Walks, WalkingConnection{FromStop: "LANBUS01", ToStop: "PRE01", WalkMinutes: 0})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := testDataset(t)
			tt.mutate(&ds)
			g, err := BuildGraph(ds)
			if err == nil {
				t.Fatal("expected build to fail")
			}
			if !errors.Is(err, ErrStructural) {
				t.Errorf("error should wrap ErrStructural, got %v", err)
			}
			if g != nil {
				t.Error("failed build must not return a partial graph")
			}
		})
	}
}

func TestDeparturesFrom(t *testing.T) {
	g := mustBuild(t, testDataset(t))
	day := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	deps := g.DeparturesFrom("LAN01", 8*60+50, day, NewModeSet(ModeRail))
	if len(deps) != 1 || deps[0].Trip.ID != "T1" {
		t.Fatalf("expected only T1, got %+v", deps)
	}
	if deps[0].To != "PRE01" || deps[0].Arrives != 9*60+40 {
		t.Errorf("edge should ride to PRE01 arriving 09:40, got %+v", deps[0])
	}

	// after the departure has gone
	if deps := g.DeparturesFrom("LAN01", 9*60+1, day, NewModeSet(ModeRail)); len(deps) != 0 {
		t.Errorf("no departures expected after 09:01, got %+v", deps)
	}
	// mode filter excludes rail
	if deps := g.DeparturesFrom("LAN01", 8*60, day, NewModeSet(ModeBus)); len(deps) != 0 {
		t.Errorf("bus filter should exclude the rail trip, got %+v", deps)
	}
}

func TestDeparturesFrom_Validity(t *testing.T) {
	ds := testDataset(t)
	ds.Trips[0].Days = ParseDays("MoTuWeThFr")
	ds.Trips[0].ValidFrom = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ds.Trips[0].ValidTo = time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	g := mustBuild(t, ds)

	wednesday := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	expired := time.Date(2027, 8, 25, 0, 0, 0, 0, time.UTC)

	if len(g.DeparturesFrom("LAN01", 0, wednesday, nil)) != 1 {
		t.Error("weekday service should run on Wednesday")
	}
	if len(g.DeparturesFrom("LAN01", 0, saturday, nil)) != 0 {
		t.Error("weekday service must not run on Saturday")
	}
	if len(g.DeparturesFrom("LAN01", 0, expired, nil)) != 0 {
		t.Error("service must not run outside its validity window")
	}
}

func TestArrivalsAt(t *testing.T) {
	g := mustBuild(t, testDataset(t))
	day := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	arrs := g.ArrivalsAt("PRE01", 9*60+40, day, nil)
	if len(arrs) != 1 || arrs[0].Trip.ID != "T1" {
		t.Fatalf("expected only T1 to arrive by 09:40, got %+v", arrs)
	}
	arrs = g.ArrivalsAt("PRE01", 10*60, day, nil)
	if len(arrs) != 2 {
		t.Fatalf("expected both trips to arrive by 10:00, got %+v", arrs)
	}
}

func TestSearchByName(t *testing.T) {
	g := mustBuild(t, testDataset(t))

	stops := g.SearchStops("lancaster", 10)
	if len(stops) != 2 {
		t.Fatalf("expected 2 Lancaster stops, got %d", len(stops))
	}
	if locs := g.SearchLocalities("PRES", 10); len(locs) != 1 || locs[0].ID != "E0015821" {
		t.Errorf("expected Preston locality, got %+v", locs)
	}
	if stops := g.SearchStops("blackpool", 10); len(stops) != 0 {
		t.Errorf("expected no matches, got %+v", stops)
	}
}

func TestStopsInLocality(t *testing.T) {
	g := mustBuild(t, testDataset(t))
	if ids := g.StopsInLocality("E0015763"); len(ids) != 2 {
		t.Errorf("Lancaster should group two stops, got %v", ids)
	}
}

func TestDayMask(t *testing.T) {
	m := ParseDays("MoTuWeThFr")
	if !m.Has(time.Monday) || !m.Has(time.Friday) {
		t.Error("weekday mask should cover Monday and Friday")
	}
	if m.Has(time.Saturday) || m.Has(time.Sunday) {
		t.Error("weekday mask must not cover the weekend")
	}
	var zero DayMask
	if !zero.Has(time.Sunday) {
		t.Error("zero mask means every day")
	}
}

func TestMinuteOfDayClock(t *testing.T) {
	tests := []struct {
		in   MinuteOfDay
		want string
	}{
		{0, "00:00"},
		{9*60 + 5, "09:05"},
		{23*60 + 59, "23:59"},
		{24*60 + 15, "00:15"}, // overnight wrap
	}
	for _, tt := range tests {
		if got := tt.in.Clock(); got != tt.want {
			t.Errorf("Clock(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
