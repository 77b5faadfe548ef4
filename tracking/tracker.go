package tracking

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuustard/LancasterLink/feed"
)

// unavailableAfter is the multiple of a source's polling interval after
// which, with no fresh data, the whole source counts as live-unavailable.
const unavailableAfter = 3

// Store is the writer-side vehicle position store. Pollers and the
// normalizer write into it; the snapshot publisher reads immutable Views.
type Store struct {
	mu        sync.RWMutex
	window    time.Duration
	positions map[string]feed.VehiclePosition // by vehicle id
	sources   map[string]*sourceState
	log       zerolog.Logger
}

type sourceState struct {
	interval    time.Duration
	lastFresh   time.Time // newest position timestamp seen from this source
	lastAttempt time.Time
	lastOK      time.Time
}

func NewStore(freshnessWindow time.Duration, log zerolog.Logger) *Store {
	if freshnessWindow <= 0 {
		freshnessWindow = 5 * time.Minute
	}
	return &Store{
		window:    freshnessWindow,
		positions: map[string]feed.VehiclePosition{},
		sources:   map[string]*sourceState{},
		log:       log,
	}
}

// RegisterSource declares a feed source and its polling cadence, which
// bounds how long the source may be silent before it is unavailable.
func (s *Store) RegisterSource(name string, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s.mu.Lock()
	s.sources[name] = &sourceState{interval: interval}
	s.mu.Unlock()
	s.log.Debug().Str("source", name).Dur("interval", interval).Msg("feed source registered")
}

// ApplyPosition stores a vehicle position, superseding any earlier
// report for the same vehicle. Implements feed.PositionSink.
func (s *Store) ApplyPosition(p feed.VehiclePosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.positions[p.VehicleID]; ok && p.LastUpdated.Before(prev.LastUpdated) {
		return // out-of-order report
	}
	s.positions[p.VehicleID] = p
	if st, ok := s.sources[p.Source]; ok && p.LastUpdated.After(st.lastFresh) {
		st.lastFresh = p.LastUpdated
	}
}

// RecordPoll notes a poll attempt outcome. Implements feed.SourceMonitor.
// A successful poll proves connectivity but not freshness; only position
// data advances the freshness clock.
func (s *Store) RecordPoll(source string, ok bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, known := s.sources[source]
	if !known {
		st = &sourceState{interval: 30 * time.Second}
		s.sources[source] = st
	}
	st.lastAttempt = at
	if ok {
		st.lastOK = at
	}
}

// Fresh reports whether a position may influence delay estimation at
// the given instant.
func (s *Store) Fresh(p feed.VehiclePosition, now time.Time) bool {
	return now.Sub(p.LastUpdated) <= s.window
}

// SourceStatus is the per-feed freshness state carried in snapshots.
type SourceStatus struct {
	Name      string
	Available bool
	LastFresh time.Time
	LastOK    time.Time
}

// View assembles the immutable freshness/delay state for one snapshot.
// Delay estimates are pre-filtered: stale positions and positions from
// unavailable sources never make it in.
func (s *Store) View(now time.Time) *View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := &View{
		now:        now,
		window:     s.window,
		tripDelay:  map[string]float64{},
		routeDelay: map[string]float64{},
		sources:    map[string]SourceStatus{},
	}

	for name, st := range s.sources {
		available := !st.lastFresh.IsZero() && now.Sub(st.lastFresh) <= unavailableAfter*st.interval
		v.sources[name] = SourceStatus{Name: name, Available: available, LastFresh: st.lastFresh, LastOK: st.lastOK}
	}

	routeSum := map[string]float64{}
	routeN := map[string]int{}
	tripSeen := map[string]time.Time{}

	for _, p := range s.positions {
		if !s.Fresh(p, now) {
			continue
		}
		if st, ok := v.sources[p.Source]; ok && !st.Available {
			continue
		}
		v.freshCount++
		if p.DelayMinutes == nil {
			continue
		}
		if p.TripID != "" {
			if last, ok := tripSeen[p.TripID]; !ok || p.LastUpdated.After(last) {
				tripSeen[p.TripID] = p.LastUpdated
				v.tripDelay[p.TripID] = *p.DelayMinutes
			}
		}
		if p.RouteID != "" {
			routeSum[p.RouteID] += *p.DelayMinutes
			routeN[p.RouteID]++
		}
	}
	for id, sum := range routeSum {
		v.routeDelay[id] = sum / float64(routeN[id])
	}
	return v
}

// View is the immutable per-snapshot freshness and delay state.
type View struct {
	now        time.Time
	window     time.Duration
	tripDelay  map[string]float64
	routeDelay map[string]float64
	sources    map[string]SourceStatus
	freshCount int
}

// EmptyView returns a view with no live data, used for bootstrapping.
func EmptyView() *View {
	return &View{
		tripDelay:  map[string]float64{},
		routeDelay: map[string]float64{},
		sources:    map[string]SourceStatus{},
	}
}

// DelayMinutes estimates the current delay for a trip. The boolean is
// false when no fresh live data covers it, in which case the caller
// must use scheduled times and tag legs scheduled-fallback.
func (v *View) DelayMinutes(tripID, routeID string) (float64, bool) {
	if d, ok := v.tripDelay[tripID]; ok {
		return d, true
	}
	if d, ok := v.routeDelay[routeID]; ok {
		return d, true
	}
	return 0, false
}

// SourceAvailable reports whether an operator feed is currently live.
func (v *View) SourceAvailable(name string) bool {
	st, ok := v.sources[name]
	return ok && st.Available
}

// Sources lists the per-feed freshness state.
func (v *View) Sources() []SourceStatus {
	out := make([]SourceStatus, 0, len(v.sources))
	for _, st := range v.sources {
		out = append(out, st)
	}
	return out
}

// FreshCount reports how many fresh positions back this view.
func (v *View) FreshCount() int { return v.freshCount }
