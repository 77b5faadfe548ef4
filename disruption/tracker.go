// Package disruption maintains the set of currently active disruptions
// and the penalty they impose on affected trips and stops.
//
// Disruptions are additive annotations, evaluated lazily at query time
// against the time a journey would actually use the affected service.
// A cancelled service is unusable, not merely penalised.
package disruption

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuustard/LancasterLink/feed"
)

// SeverityMinutes converts a disruption severity into added cost.
type SeverityMinutes struct {
	Minor    float64
	Moderate float64
	Severe   float64
}

// DefaultSeverityMinutes mirrors the config defaults.
var DefaultSeverityMinutes = SeverityMinutes{Minor: 5, Moderate: 12, Severe: 25}

func (m SeverityMinutes) of(s feed.Severity) float64 {
	switch s {
	case feed.SeverityMinor:
		return m.Minor
	case feed.SeverityModerate:
		return m.Moderate
	case feed.SeveritySevere:
		return m.Severe
	}
	return m.Moderate
}

// Tracker is the mutable, writer-side store of disruptions. The snapshot
// publisher calls View to obtain an immutable set for query use.
type Tracker struct {
	mu        sync.RWMutex
	byID      map[string]feed.Disruption
	penalties SeverityMinutes
	log       zerolog.Logger
}

func NewTracker(penalties SeverityMinutes, log zerolog.Logger) *Tracker {
	return &Tracker{
		byID:      map[string]feed.Disruption{},
		penalties: penalties,
		log:       log,
	}
}

// ApplyDisruption upserts a disruption. A newer event supersedes any
// earlier one with the same identifier, which is also how open-ended
// disruptions get closed.
func (t *Tracker) ApplyDisruption(d feed.Disruption) {
	t.mu.Lock()
	t.byID[d.ID] = d
	t.mu.Unlock()
	t.log.Debug().Str("id", d.ID).Str("type", string(d.Type)).Str("severity", string(d.Severity)).Msg("disruption applied")
}

// Expire removes disruptions whose window closed before cutoff, keeping
// the map from growing without bound.
func (t *Tracker) Expire(cutoff time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, d := range t.byID {
		if d.End != nil && d.End.Before(cutoff) {
			delete(t.byID, id)
		}
	}
}

// View assembles the immutable disruption set for one snapshot, indexed
// for the penalty checks inside the search loop.
func (t *Tracker) View(now time.Time) *Set {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := &Set{
		byRoute:   map[string][]feed.Disruption{},
		byStop:    map[string][]feed.Disruption{},
		penalties: t.penalties,
	}
	for _, d := range t.byID {
		// keep anything plausibly relevant around "now"; window checks
		// against the exact edge time happen at query time
		if d.End != nil && d.End.Before(now) {
			continue
		}
		if d.RouteID != "" {
			s.byRoute[d.RouteID] = append(s.byRoute[d.RouteID], d)
		}
		if d.StopID != "" {
			s.byStop[d.StopID] = append(s.byStop[d.StopID], d)
		}
		s.count++
	}
	return s
}

// Penalty is the cost a disruption imposes on an edge.
type Penalty struct {
	Unusable     bool
	ExtraMinutes float64
	Disrupted    bool // any active disruption applies, even if usable
}

// Set is the immutable per-snapshot disruption view.
type Set struct {
	byRoute   map[string][]feed.Disruption
	byStop    map[string][]feed.Disruption
	penalties SeverityMinutes
	count     int
}

// EmptySet returns a set with no disruptions, used for bootstrapping.
func EmptySet() *Set {
	return &Set{
		byRoute:   map[string][]feed.Disruption{},
		byStop:    map[string][]feed.Disruption{},
		penalties: DefaultSeverityMinutes,
	}
}

// Count reports the number of disruptions in the set.
func (s *Set) Count() int { return s.count }

// ForRoute evaluates the penalty for using a trip of the given route at
// the given time. Cancellation wins over any delay.
func (s *Set) ForRoute(routeID string, at time.Time) Penalty {
	return s.evaluate(s.byRoute[routeID], at)
}

// ForStop evaluates the penalty for calling at a stop at the given time.
func (s *Set) ForStop(stopID string, at time.Time) Penalty {
	return s.evaluate(s.byStop[stopID], at)
}

func (s *Set) evaluate(ds []feed.Disruption, at time.Time) Penalty {
	var p Penalty
	for _, d := range ds {
		if !d.ActiveAt(at) {
			continue
		}
		p.Disrupted = true
		if d.Type == feed.DisruptionCancelled {
			p.Unusable = true
			return p
		}
		p.ExtraMinutes += s.penalties.of(d.Severity)
	}
	return p
}

// Active lists disruptions in the set active at the given time.
func (s *Set) Active(at time.Time) []feed.Disruption {
	seen := map[string]struct{}{}
	var out []feed.Disruption
	collect := func(ds []feed.Disruption) {
		for _, d := range ds {
			if _, dup := seen[d.ID]; dup || !d.ActiveAt(at) {
				continue
			}
			seen[d.ID] = struct{}{}
			out = append(out, d)
		}
	}
	for _, ds := range s.byRoute {
		collect(ds)
	}
	for _, ds := range s.byStop {
		collect(ds)
	}
	return out
}
