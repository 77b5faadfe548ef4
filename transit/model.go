package transit

import (
	"fmt"
	"strings"
	"time"
)

// Mode is the transport mode of a stop, route or journey leg.
type Mode string

const (
	ModeBus  Mode = "bus"
	ModeRail Mode = "rail"
	ModeTram Mode = "tram"
	// ModeWalk only appears on journey legs, never on stops or routes.
	ModeWalk Mode = "walk"
)

// ParseMode validates a mode string from config or a query.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeBus:
		return ModeBus, true
	case ModeRail:
		return ModeRail, true
	case ModeTram:
		return ModeTram, true
	}
	return "", false
}

// ModeSet is a query's mode filter.
type ModeSet map[Mode]struct{}

func NewModeSet(modes ...Mode) ModeSet {
	s := ModeSet{}
	for _, m := range modes {
		s[m] = struct{}{}
	}
	return s
}

func (s ModeSet) Has(m Mode) bool {
	_, ok := s[m]
	return ok
}

// MinuteOfDay is a scheduled clock time in minutes since midnight on the
// service day. Values beyond 1439 describe times past midnight on trips
// that run overnight.
type MinuteOfDay int

// Clock renders the minute as HH:MM, wrapping past midnight.
func (m MinuteOfDay) Clock() string {
	mm := int(m) % (24 * 60)
	if mm < 0 {
		mm += 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", mm/60, mm%60)
}

// MinuteOf converts a wall-clock time to minutes since midnight.
func MinuteOf(t time.Time) MinuteOfDay {
	return MinuteOfDay(t.Hour()*60 + t.Minute())
}

// DayMask is a day-of-week bitmask, bit 0 = Monday. The zero value means
// "every day" so reference data without a mask still operates.
type DayMask uint8

const DayAll DayMask = 0x7f

var dayAbbrev = map[string]int{
	"mo": 0, "tu": 1, "we": 2, "th": 3, "fr": 4, "sa": 5, "su": 6,
}

// ParseDays parses the NaPTAN-style concatenated form, e.g. "MoTuWeThFr".
func ParseDays(s string) DayMask {
	var m DayMask
	s = strings.ToLower(strings.TrimSpace(s))
	for i := 0; i+2 <= len(s); i += 2 {
		if bit, ok := dayAbbrev[s[i:i+2]]; ok {
			m |= 1 << bit
		}
	}
	return m
}

func (m DayMask) Has(wd time.Weekday) bool {
	if m == 0 {
		return true
	}
	// time.Weekday counts from Sunday; the mask counts from Monday.
	idx := (int(wd) + 6) % 7
	return m&(1<<idx) != 0
}

// Locality is an NPTG town/area grouping of stops, used for
// disambiguation and search-by-town.
type Locality struct {
	ID     string
	Name   string
	Region string
	Lat    float64
	Lon    float64
}

// Stop is a NaPTAN stop point: the fundamental node of the routing graph.
type Stop struct {
	ID         string
	Name       string
	Mode       Mode
	Lat        float64
	Lon        float64
	LocalityID string // weak reference, may be empty
	// HubScore ranks how well-connected the stop is (higher = busier
	// interchange). It is fixed at graph build time; records without a
	// pipeline-supplied score get one derived from connectivity.
	HubScore float64
}

// Route is an operator's named service (e.g. "Stagecoach 2A").
type Route struct {
	ID       string
	Operator string
	Name     string
	Mode     Mode
}

// StopTime is one scheduled call within a trip.
type StopTime struct {
	StopID    string
	Seq       int
	Arrival   MinuteOfDay
	Departure MinuteOfDay
}

// Trip is the atomic schedulable unit: one vehicle journey along a route.
type Trip struct {
	ID        string
	RouteID   string
	StopTimes []StopTime
	ValidFrom time.Time // zero = open-ended
	ValidTo   time.Time // zero = open-ended
	Days      DayMask
}

// OperatesOn reports whether the trip runs on the given service date.
func (t *Trip) OperatesOn(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	if !t.ValidFrom.IsZero() && d.Before(t.ValidFrom.Truncate(24*time.Hour)) {
		return false
	}
	if !t.ValidTo.IsZero() && d.After(t.ValidTo.Truncate(24*time.Hour)) {
		return false
	}
	return t.Days.Has(date.Weekday())
}

// WalkingConnection stitches two nearby stops across modes/operators.
// Stored directed; the graph builder mirrors each record.
type WalkingConnection struct {
	FromStop    string
	ToStop      string
	WalkMinutes float64
	DistanceM   float64
}

// Dataset is the bulk reference-data intake: everything needed to build
// one immutable graph version.
type Dataset struct {
	Localities []Locality
	Stops      []Stop
	Routes     []Route
	Trips      []Trip
	Walks      []WalkingConnection
}
