package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuustard/LancasterLink/transit"
)

// References answers whether identifiers in a live event exist in the
// current graph version. Events referencing unknown routes/stops are
// dropped at this boundary, never downstream.
type References interface {
	RouteKnown(id string) bool
	StopKnown(id string) bool
}

// PositionSink receives normalized vehicle positions.
type PositionSink interface {
	ApplyPosition(VehiclePosition)
}

// DisruptionSink receives normalized disruptions.
type DisruptionSink interface {
	ApplyDisruption(Disruption)
}

// EventMonitor counts accepted and rejected events per source. The
// metrics collector implements it; a nil monitor disables counting.
type EventMonitor interface {
	RecordEvent(source, kind string)
	RecordDrop(source string)
}

// statusVocab maps operator status vocabularies onto the canonical
// disruption type/severity enumeration.
var statusVocab = map[string]struct {
	Type     DisruptionType
	Severity Severity
}{
	"cancelled":         {DisruptionCancelled, SeveritySevere},
	"canceled":          {DisruptionCancelled, SeveritySevere},
	"service withdrawn": {DisruptionCancelled, SeveritySevere},
	"not running":       {DisruptionCancelled, SeveritySevere},
	"severely delayed":  {DisruptionDelayed, SeveritySevere},
	"delayed":           {DisruptionDelayed, SeverityModerate},
	"running late":      {DisruptionDelayed, SeverityModerate},
	"minor delays":      {DisruptionDelayed, SeverityMinor},
	"diverted":          {DisruptionDiverted, SeverityModerate},
	"diversion":         {DisruptionDiverted, SeverityModerate},
}

// positionPayload is the operator-facing wire shape for position events.
type positionPayload struct {
	VehicleID    string    `json:"vehicle_id"`
	RouteID      string    `json:"route_id,omitempty"`
	TripID       string    `json:"trip_id,omitempty"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	Bearing      float64   `json:"bearing,omitempty"`
	Speed        float64   `json:"speed,omitempty"`
	Mode         string    `json:"mode,omitempty"`
	DelayMinutes *float64  `json:"delay_minutes,omitempty"`
	LastUpdated  time.Time `json:"last_updated"`
}

// disruptionPayload is the operator-facing wire shape for disruptions.
type disruptionPayload struct {
	ID          string     `json:"id"`
	RouteID     string     `json:"route_id,omitempty"`
	StopID      string     `json:"stop_id,omitempty"`
	Status      string     `json:"status"`
	Severity    string     `json:"severity,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Normalizer converts heterogeneous operator events into the canonical
// stream. Faults are absorbed here: a malformed or unknown-reference
// event is logged and dropped without affecting anything else.
type Normalizer struct {
	// Monitor, when set before ingestion starts, receives per-source
	// accept and drop counts.
	Monitor EventMonitor

	refs        References
	positions   PositionSink
	disruptions DisruptionSink
	log         zerolog.Logger

	mu        sync.Mutex
	seen      map[string]time.Time
	dedupeTTL time.Duration
}

func NewNormalizer(refs References, positions PositionSink, disruptions DisruptionSink, log zerolog.Logger) *Normalizer {
	return &Normalizer{
		refs:        refs,
		positions:   positions,
		disruptions: disruptions,
		log:         log,
		seen:        map[string]time.Time{},
		dedupeTTL:   10 * time.Minute,
	}
}

// Ingest normalizes one raw event and dispatches it to its sink. The
// returned error is informational; callers log it and carry on.
func (n *Normalizer) Ingest(ev RawEvent) error {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	if n.isDuplicate(ev) {
		return nil
	}
	var err error
	switch ev.Kind {
	case KindPosition:
		err = n.ingestPosition(ev)
	case KindDisruption:
		err = n.ingestDisruption(ev)
	default:
		n.log.Warn().Str("source", ev.Source).Str("kind", string(ev.Kind)).Msg("dropping event of unknown kind")
		err = fmt.Errorf("unknown event kind %q from %s", ev.Kind, ev.Source)
	}
	if n.Monitor != nil {
		if err != nil {
			n.Monitor.RecordDrop(ev.Source)
		} else {
			n.Monitor.RecordEvent(ev.Source, string(ev.Kind))
		}
	}
	return err
}

func (n *Normalizer) ingestPosition(ev RawEvent) error {
	var p positionPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		n.log.Warn().Err(err).Str("source", ev.Source).Msg("dropping malformed position event")
		return fmt.Errorf("malformed position from %s: %w", ev.Source, err)
	}
	if p.VehicleID == "" {
		n.log.Warn().Str("source", ev.Source).Msg("dropping position without vehicle id")
		return fmt.Errorf("position without vehicle id from %s", ev.Source)
	}
	if p.RouteID != "" && !n.refs.RouteKnown(p.RouteID) {
		n.log.Warn().Str("source", ev.Source).Str("route", p.RouteID).Msg("dropping position for unknown route")
		return fmt.Errorf("unknown route %q from %s", p.RouteID, ev.Source)
	}
	mode, _ := transit.ParseMode(p.Mode)
	if p.LastUpdated.IsZero() {
		p.LastUpdated = ev.ReceivedAt
	}
	n.positions.ApplyPosition(VehiclePosition{
		VehicleID:    p.VehicleID,
		RouteID:      p.RouteID,
		TripID:       p.TripID,
		Lat:          p.Lat,
		Lon:          p.Lon,
		Bearing:      p.Bearing,
		Speed:        p.Speed,
		Mode:         mode,
		DelayMinutes: p.DelayMinutes,
		LastUpdated:  p.LastUpdated,
		Source:       ev.Source,
	})
	return nil
}

func (n *Normalizer) ingestDisruption(ev RawEvent) error {
	var p disruptionPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		n.log.Warn().Err(err).Str("source", ev.Source).Msg("dropping malformed disruption event")
		return fmt.Errorf("malformed disruption from %s: %w", ev.Source, err)
	}
	if p.ID == "" {
		n.log.Warn().Str("source", ev.Source).Msg("dropping disruption without id")
		return fmt.Errorf("disruption without id from %s", ev.Source)
	}
	vocab, ok := statusVocab[strings.ToLower(strings.TrimSpace(p.Status))]
	if !ok {
		n.log.Warn().Str("source", ev.Source).Str("status", p.Status).Msg("dropping disruption with unknown status")
		return fmt.Errorf("unknown status %q from %s", p.Status, ev.Source)
	}
	if p.RouteID != "" && !n.refs.RouteKnown(p.RouteID) {
		n.log.Warn().Str("source", ev.Source).Str("route", p.RouteID).Msg("dropping disruption for unknown route")
		return fmt.Errorf("unknown route %q from %s", p.RouteID, ev.Source)
	}
	if p.StopID != "" && !n.refs.StopKnown(p.StopID) {
		n.log.Warn().Str("source", ev.Source).Str("stop", p.StopID).Msg("dropping disruption for unknown stop")
		return fmt.Errorf("unknown stop %q from %s", p.StopID, ev.Source)
	}
	if p.EndTime != nil && p.EndTime.Before(p.StartTime) {
		n.log.Warn().Str("source", ev.Source).Str("id", p.ID).Msg("dropping disruption with inverted window")
		return fmt.Errorf("inverted window on disruption %q from %s", p.ID, ev.Source)
	}

	severity := vocab.Severity
	switch Severity(strings.ToLower(p.Severity)) {
	case SeverityMinor, SeverityModerate, SeveritySevere:
		severity = Severity(strings.ToLower(p.Severity))
	}
	start := p.StartTime
	if start.IsZero() {
		start = ev.ReceivedAt
	}
	n.disruptions.ApplyDisruption(Disruption{
		ID:          p.ID,
		RouteID:     p.RouteID,
		StopID:      p.StopID,
		Type:        vocab.Type,
		Severity:    severity,
		Start:       start,
		End:         p.EndTime,
		Description: p.Description,
		Source:      ev.Source,
	})
	return nil
}

// isDuplicate drops byte-identical repeats of a recent event.
func (n *Normalizer) isDuplicate(ev RawEvent) bool {
	key := ev.Source + "|" + string(ev.Kind) + "|" + string(ev.Payload)
	now := ev.ReceivedAt

	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.seen[key]; ok && now.Sub(last) < n.dedupeTTL {
		return true
	}
	if len(n.seen) > 8192 {
		for k, v := range n.seen {
			if now.Sub(v) >= n.dedupeTTL {
				delete(n.seen, k)
			}
		}
	}
	n.seen[key] = now
	return false
}
