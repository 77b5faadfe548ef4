package feed

import (
	"encoding/json"
	"time"

	"github.com/cuustard/LancasterLink/transit"
)

// EventKind tags the two canonical live-event variants.
type EventKind string

const (
	KindPosition   EventKind = "position"
	KindDisruption EventKind = "disruption"
)

// RawEvent is the generic shape every operator feed is reduced to before
// it reaches the normalizer: transport-level parsing already happened
// upstream, only the payload vocabulary is still operator-specific.
type RawEvent struct {
	Source     string          `json:"source"`
	Kind       EventKind       `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// DisruptionType is the canonical disruption classification.
type DisruptionType string

const (
	DisruptionCancelled DisruptionType = "cancelled"
	DisruptionDelayed   DisruptionType = "delayed"
	DisruptionDiverted  DisruptionType = "diverted"
)

// Severity orders disruptions by impact.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Rank returns a comparable weight (minor < moderate < severe).
func (s Severity) Rank() int {
	switch s {
	case SeverityMinor:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySevere:
		return 3
	}
	return 0
}

// Disruption is an additive annotation over trips/stops, never a
// structural change to the graph.
type Disruption struct {
	ID          string
	RouteID     string // optional
	StopID      string // optional
	Type        DisruptionType
	Severity    Severity
	Start       time.Time
	End         *time.Time // nil = active until superseded
	Description string
	Source      string
}

// ActiveAt reports whether the disruption window covers t. A nil end
// means active indefinitely until a newer event with the same ID arrives.
func (d Disruption) ActiveAt(t time.Time) bool {
	if t.Before(d.Start) {
		return false
	}
	return d.End == nil || !t.After(*d.End)
}

// VehiclePosition is a live report, lifecycled independently from trips.
// It only ever feeds delay estimation; the schedule stays authoritative.
type VehiclePosition struct {
	VehicleID    string
	RouteID      string // optional
	TripID       string // optional
	Lat          float64
	Lon          float64
	Bearing      float64
	Speed        float64
	Mode         transit.Mode
	DelayMinutes *float64 // operator-estimated delay, if reported
	LastUpdated  time.Time
	Source       string
}
