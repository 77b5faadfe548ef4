package transit

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrStructural marks referential-integrity failures at graph build time.
// A build that returns it produced no partial graph; callers keep serving
// the previous version.
var ErrStructural = errors.New("structural error in reference data")

// Departure is one timetabled edge leaving a stop: boarding a trip and
// riding to the next stop in its sequence.
type Departure struct {
	Trip    *Trip
	Route   *Route
	StopPos int // index of the boarding stop within Trip.StopTimes
	From    string
	To      string
	Departs MinuteOfDay // departure at From
	Arrives MinuteOfDay // arrival at To
}

// Graph is the immutable transit graph for one reference-data version.
// Stops, trips and walking connections live in flat slices referenced by
// integer index; walking cycles are harmless because the search tracks
// visited-with-cost rather than following references.
type Graph struct {
	stops      []Stop
	stopIdx    map[string]int
	localities map[string]Locality
	byLocality map[string][]string // locality id -> stop ids
	routes     map[string]Route
	trips      []Trip
	tripIdx    map[string]int

	departures [][]Departure // per stop index, sorted by Departs
	arrivals   [][]Departure // per stop index, edges arriving there, sorted by Arrives
	walksOut   [][]WalkingConnection
	walksIn    [][]WalkingConnection

	names       *nameIndex
	maxHubScore float64
	builtAt     time.Time
}

// BuildGraph validates the dataset and constructs a graph. It fails fast:
// any integrity violation aborts the whole build.
func BuildGraph(ds Dataset) (*Graph, error) {
	g := &Graph{
		stopIdx:    make(map[string]int, len(ds.Stops)),
		localities: make(map[string]Locality, len(ds.Localities)),
		byLocality: map[string][]string{},
		routes:     make(map[string]Route, len(ds.Routes)),
		tripIdx:    make(map[string]int, len(ds.Trips)),
		builtAt:    time.Now(),
	}

	for _, l := range ds.Localities {
		if _, dup := g.localities[l.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate locality %q", ErrStructural, l.ID)
		}
		g.localities[l.ID] = l
	}

	g.stops = make([]Stop, 0, len(ds.Stops))
	for _, s := range ds.Stops {
		if _, dup := g.stopIdx[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate stop %q", ErrStructural, s.ID)
		}
		if s.LocalityID != "" {
			if _, ok := g.localities[s.LocalityID]; !ok {
				return nil, fmt.Errorf("%w: stop %q references unknown locality %q", ErrStructural, s.ID, s.LocalityID)
			}
			g.byLocality[s.LocalityID] = append(g.byLocality[s.LocalityID], s.ID)
		}
		g.stopIdx[s.ID] = len(g.stops)
		g.stops = append(g.stops, s)
	}

	for _, r := range ds.Routes {
		if _, dup := g.routes[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate route %q", ErrStructural, r.ID)
		}
		g.routes[r.ID] = r
	}

	g.trips = make([]Trip, 0, len(ds.Trips))
	for _, t := range ds.Trips {
		if err := g.validateTrip(&t); err != nil {
			return nil, err
		}
		g.tripIdx[t.ID] = len(g.trips)
		g.trips = append(g.trips, t)
	}

	g.departures = make([][]Departure, len(g.stops))
	g.arrivals = make([][]Departure, len(g.stops))
	g.walksOut = make([][]WalkingConnection, len(g.stops))
	g.walksIn = make([][]WalkingConnection, len(g.stops))

	for i := range g.trips {
		trip := &g.trips[i]
		route := g.routes[trip.RouteID]
		for pos := 0; pos < len(trip.StopTimes)-1; pos++ {
			cur, next := trip.StopTimes[pos], trip.StopTimes[pos+1]
			dep := Departure{
				Trip:    trip,
				Route:   &route,
				StopPos: pos,
				From:    cur.StopID,
				To:      next.StopID,
				Departs: cur.Departure,
				Arrives: next.Arrival,
			}
			fi := g.stopIdx[cur.StopID]
			ti := g.stopIdx[next.StopID]
			g.departures[fi] = append(g.departures[fi], dep)
			g.arrivals[ti] = append(g.arrivals[ti], dep)
		}
	}

	for _, w := range ds.Walks {
		if err := g.addWalk(w); err != nil {
			return nil, err
		}
		// walking connections are usable in both directions
		mirror := WalkingConnection{FromStop: w.ToStop, ToStop: w.FromStop, WalkMinutes: w.WalkMinutes, DistanceM: w.DistanceM}
		if err := g.addWalk(mirror); err != nil {
			return nil, err
		}
	}

	for i := range g.departures {
		sort.SliceStable(g.departures[i], func(a, b int) bool {
			return g.departures[i][a].Departs < g.departures[i][b].Departs
		})
	}
	for i := range g.arrivals {
		sort.SliceStable(g.arrivals[i], func(a, b int) bool {
			return g.arrivals[i][a].Arrives < g.arrivals[i][b].Arrives
		})
	}

	g.computeHubScores()
	g.names = buildNameIndex(g)
	return g, nil
}

func (g *Graph) validateTrip(t *Trip) error {
	if _, dup := g.tripIdx[t.ID]; dup {
		return fmt.Errorf("%w: duplicate trip %q", ErrStructural, t.ID)
	}
	if _, ok := g.routes[t.RouteID]; !ok {
		return fmt.Errorf("%w: trip %q references unknown route %q", ErrStructural, t.ID, t.RouteID)
	}
	if len(t.StopTimes) < 2 {
		return fmt.Errorf("%w: trip %q has fewer than two stops", ErrStructural, t.ID)
	}
	if !t.ValidFrom.IsZero() && !t.ValidTo.IsZero() && t.ValidTo.Before(t.ValidFrom) {
		return fmt.Errorf("%w: trip %q validity window ends before it starts", ErrStructural, t.ID)
	}
	prevSeq := -1
	for _, st := range t.StopTimes {
		if _, ok := g.stopIdx[st.StopID]; !ok {
			return fmt.Errorf("%w: trip %q references unknown stop %q", ErrStructural, t.ID, st.StopID)
		}
		if st.Seq <= prevSeq {
			return fmt.Errorf("%w: trip %q stop sequence not strictly increasing at %q", ErrStructural, t.ID, st.StopID)
		}
		if st.Departure < st.Arrival {
			return fmt.Errorf("%w: trip %q departs %q before it arrives", ErrStructural, t.ID, st.StopID)
		}
		prevSeq = st.Seq
	}
	return nil
}

func (g *Graph) addWalk(w WalkingConnection) error {
	if w.FromStop == w.ToStop {
		return fmt.Errorf("%w: walking connection from %q to itself", ErrStructural, w.FromStop)
	}
	fi, ok := g.stopIdx[w.FromStop]
	if !ok {
		return fmt.Errorf("%w: walking connection references unknown stop %q", ErrStructural, w.FromStop)
	}
	ti, ok := g.stopIdx[w.ToStop]
	if !ok {
		return fmt.Errorf("%w: walking connection references unknown stop %q", ErrStructural, w.ToStop)
	}
	if w.WalkMinutes <= 0 {
		return fmt.Errorf("%w: walking connection %q->%q has non-positive duration", ErrStructural, w.FromStop, w.ToStop)
	}
	g.walksOut[fi] = append(g.walksOut[fi], w)
	g.walksIn[ti] = append(g.walksIn[ti], w)
	return nil
}

// computeHubScores derives a connectivity score for every stop the
// reference pipeline did not score itself: distinct routes calling there
// plus walking interchanges. Hub scores never change after the build.
func (g *Graph) computeHubScores() {
	for i := range g.stops {
		if g.stops[i].HubScore == 0 {
			routesSeen := map[string]struct{}{}
			for _, d := range g.departures[i] {
				routesSeen[d.Route.ID] = struct{}{}
			}
			for _, d := range g.arrivals[i] {
				routesSeen[d.Route.ID] = struct{}{}
			}
			g.stops[i].HubScore = float64(len(routesSeen) + len(g.walksOut[i]))
		}
		if g.stops[i].HubScore > g.maxHubScore {
			g.maxHubScore = g.stops[i].HubScore
		}
	}
}

// StopByID returns the stop record, if known.
func (g *Graph) StopByID(id string) (Stop, bool) {
	i, ok := g.stopIdx[id]
	if !ok {
		return Stop{}, false
	}
	return g.stops[i], true
}

// LocalityByID returns the locality record, if known.
func (g *Graph) LocalityByID(id string) (Locality, bool) {
	l, ok := g.localities[id]
	return l, ok
}

// RouteByID returns the route record, if known.
func (g *Graph) RouteByID(id string) (Route, bool) {
	r, ok := g.routes[id]
	return r, ok
}

// TripByID returns the trip record, if known.
func (g *Graph) TripByID(id string) (*Trip, bool) {
	i, ok := g.tripIdx[id]
	if !ok {
		return nil, false
	}
	return &g.trips[i], true
}

// StopsInLocality lists the stop IDs grouped under a locality.
func (g *Graph) StopsInLocality(localityID string) []string {
	return g.byLocality[localityID]
}

// DeparturesFrom enumerates timetabled edges leaving a stop at or after
// the given minute on the given service date, filtered by mode.
func (g *Graph) DeparturesFrom(stopID string, after MinuteOfDay, date time.Time, modes ModeSet) []Departure {
	i, ok := g.stopIdx[stopID]
	if !ok {
		return nil
	}
	deps := g.departures[i]
	lo := sort.Search(len(deps), func(k int) bool { return deps[k].Departs >= after })
	var out []Departure
	for ; lo < len(deps); lo++ {
		d := deps[lo]
		if modes != nil && !modes.Has(d.Route.Mode) {
			continue
		}
		if !d.Trip.OperatesOn(date) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// ArrivalsAt enumerates timetabled edges arriving at a stop at or before
// the given minute. Used by arrive-by searches working backward.
func (g *Graph) ArrivalsAt(stopID string, before MinuteOfDay, date time.Time, modes ModeSet) []Departure {
	i, ok := g.stopIdx[stopID]
	if !ok {
		return nil
	}
	arrs := g.arrivals[i]
	hi := sort.Search(len(arrs), func(k int) bool { return arrs[k].Arrives > before })
	var out []Departure
	for k := 0; k < hi; k++ {
		d := arrs[k]
		if modes != nil && !modes.Has(d.Route.Mode) {
			continue
		}
		if !d.Trip.OperatesOn(date) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// WalksFrom returns the outgoing walking connections of a stop.
func (g *Graph) WalksFrom(stopID string) []WalkingConnection {
	if i, ok := g.stopIdx[stopID]; ok {
		return g.walksOut[i]
	}
	return nil
}

// WalksTo returns the incoming walking connections of a stop.
func (g *Graph) WalksTo(stopID string) []WalkingConnection {
	if i, ok := g.stopIdx[stopID]; ok {
		return g.walksIn[i]
	}
	return nil
}

// MaxHubScore is the highest hub score in this graph version, used to
// normalise the hub bonus heuristic.
func (g *Graph) MaxHubScore() float64 { return g.maxHubScore }

// BuiltAt reports when this graph version was constructed.
func (g *Graph) BuiltAt() time.Time { return g.builtAt }

// StopCount reports the number of stops in the graph.
func (g *Graph) StopCount() int { return len(g.stops) }

// TripCount reports the number of trips in the graph.
func (g *Graph) TripCount() int { return len(g.trips) }
