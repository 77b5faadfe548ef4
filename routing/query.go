package routing

import (
	"errors"
	"fmt"
	"time"

	"github.com/cuustard/LancasterLink/transit"
)

// Place names a journey endpoint: either one stop or a whole locality,
// in which case every stop in the locality is a candidate.
type Place struct {
	StopID     string
	LocalityID string
}

// Query is one journey request. When ArriveBy is set, When is the
// latest acceptable arrival instead of the earliest departure.
type Query struct {
	Origin      Place
	Destination Place
	When        time.Time
	ArriveBy    bool
	Modes       transit.ModeSet
}

// Provenance records whether a leg's expected times carry live data.
type Provenance string

const (
	ProvenanceLive     Provenance = "live"
	ProvenanceFallback Provenance = "scheduled-fallback"
)

// Leg is one ridden trip or walk within a journey.
type Leg struct {
	Mode     transit.Mode
	TripID   string // empty for walks
	RouteID  string
	Route    string
	Operator string

	From transit.Stop
	To   transit.Stop

	ScheduledDeparture transit.MinuteOfDay
	ScheduledArrival   transit.MinuteOfDay
	ExpectedDeparture  transit.MinuteOfDay
	ExpectedArrival    transit.MinuteOfDay

	Provenance Provenance
	Reliable   bool
}

// Walk reports whether the leg is a walking connection.
func (l Leg) Walk() bool { return l.Mode == transit.ModeWalk }

// Journey is one ranked itinerary.
type Journey struct {
	Legs      []Leg
	Departure transit.MinuteOfDay // expected departure of the first leg
	Arrival   transit.MinuteOfDay // expected arrival of the last leg
	Duration  int                 // minutes, expected
	Transfers int
	// Reliability scores connection robustness in [0,1]; 1 means every
	// leg is undisrupted with comfortable interchange slack.
	Reliability float64
}

// QueryError reports an unusable query: unresolvable endpoints, an
// empty mode filter, or a missing datetime. It is a caller fault,
// distinct from "no route found" (an empty result) and from faults.
type QueryError struct {
	Field  string
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid query: %s: %s", e.Field, e.Reason)
}

// ErrTimeout reports that the search exceeded its deadline. Partial
// results are discarded, never returned as if complete.
var ErrTimeout = errors.New("journey search exceeded its time budget")
