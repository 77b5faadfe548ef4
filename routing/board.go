package routing

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cuustard/LancasterLink/snapshot"
	"github.com/cuustard/LancasterLink/transit"
)

// BoardEntry is one row of a stop departure board.
type BoardEntry struct {
	TripID      string
	RouteID     string
	Route       string
	Operator    string
	Mode        transit.Mode
	Destination transit.Stop
	Scheduled   transit.MinuteOfDay
	Expected    transit.MinuteOfDay
	Provenance  Provenance
	Cancelled   bool
}

// Departures lists upcoming departures from one stop, earliest expected
// first. Cancelled services stay on the board, flagged, the way a real
// platform display keeps them visible.
func Departures(snap *snapshot.Snapshot, stopID string, from time.Time, modes transit.ModeSet, limit int) ([]BoardEntry, error) {
	if _, ok := snap.Graph.StopByID(stopID); !ok {
		return nil, &QueryError{Field: "stop", Reason: fmt.Sprintf("unknown stop %q", stopID)}
	}
	if limit <= 0 {
		limit = 10
	}

	var entries []BoardEntry
	for _, d := range snap.Graph.DeparturesFrom(stopID, transit.MinuteOf(from), from, modes) {
		delayMin, live := snap.Live.DelayMinutes(d.Trip.ID, d.Route.ID)
		delay := transit.MinuteOfDay(math.Round(delayMin))
		prov := ProvenanceFallback
		if live {
			prov = ProvenanceLive
		}
		final := d.Trip.StopTimes[len(d.Trip.StopTimes)-1]
		dest, _ := snap.Graph.StopByID(final.StopID)
		entries = append(entries, BoardEntry{
			TripID:      d.Trip.ID,
			RouteID:     d.Route.ID,
			Route:       d.Route.Name,
			Operator:    d.Route.Operator,
			Mode:        d.Route.Mode,
			Destination: dest,
			Scheduled:   d.Departs,
			Expected:    d.Departs + delay,
			Provenance:  prov,
			Cancelled:   snap.Disruptions.ForRoute(d.Route.ID, from).Unusable,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Expected != b.Expected {
			return a.Expected < b.Expected
		}
		if a.Scheduled != b.Scheduled {
			return a.Scheduled < b.Scheduled
		}
		return a.TripID < b.TripID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
