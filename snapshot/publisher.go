package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuustard/LancasterLink/disruption"
	"github.com/cuustard/LancasterLink/tracking"
	"github.com/cuustard/LancasterLink/transit"
)

// Snapshot is one immutable view of the network. Everything it points
// at is frozen at publication time.
type Snapshot struct {
	Version     uint64
	Graph       *transit.Graph
	Disruptions *disruption.Set
	Live        *tracking.View
	BuiltAt     time.Time
}

// Publisher periodically folds tracker state into fresh snapshots and
// hands the latest one to readers through an atomic pointer swap.
type Publisher struct {
	mu       sync.Mutex // serialises Publish and graph swaps
	graph    *transit.Graph
	tracker  *disruption.Tracker
	store    *tracking.Store
	interval time.Duration
	current  atomic.Pointer[Snapshot]
	version  atomic.Uint64
	log      zerolog.Logger

	// OnPublish, when set, observes every published snapshot.
	OnPublish func(*Snapshot)
}

func NewPublisher(g *transit.Graph, tracker *disruption.Tracker, store *tracking.Store, interval time.Duration, log zerolog.Logger) *Publisher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	p := &Publisher{
		graph:    g,
		tracker:  tracker,
		store:    store,
		interval: interval,
		log:      log,
	}
	p.Publish(time.Now())
	return p
}

// Current returns the latest snapshot. Callers keep using the returned
// pointer for the whole of one query; it never mutates.
func (p *Publisher) Current() *Snapshot {
	return p.current.Load()
}

// Publish builds and installs a new snapshot from the current graph,
// disruption and tracking state. Versions are strictly monotonic.
func (p *Publisher) Publish(now time.Time) *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := &Snapshot{
		Version: p.version.Add(1),
		Graph:   p.graph,
		BuiltAt: now,
	}
	if p.tracker != nil {
		p.tracker.Expire(now)
		snap.Disruptions = p.tracker.View(now)
	} else {
		snap.Disruptions = disruption.EmptySet()
	}
	if p.store != nil {
		snap.Live = p.store.View(now)
	} else {
		snap.Live = tracking.EmptyView()
	}
	p.current.Store(snap)

	p.log.Debug().
		Uint64("version", snap.Version).
		Int("disruptions", snap.Disruptions.Count()).
		Int("fresh_positions", snap.Live.FreshCount()).
		Msg("snapshot published")
	if p.OnPublish != nil {
		p.OnPublish(snap)
	}
	return snap
}

// SwapGraph installs a new reference-data graph and publishes
// immediately so readers pick it up without waiting a tick.
func (p *Publisher) SwapGraph(g *transit.Graph, now time.Time) *Snapshot {
	p.mu.Lock()
	p.graph = g
	p.mu.Unlock()
	p.log.Info().
		Int("stops", g.StopCount()).
		Int("trips", g.TripCount()).
		Msg("reference data graph swapped")
	return p.Publish(now)
}

// Run republishes on the configured interval until the context ends.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.Publish(now)
		}
	}
}

// RouteKnown reports whether a route exists in the current graph.
// Together with StopKnown this lets the feed layer validate event
// references without depending on the graph directly.
func (p *Publisher) RouteKnown(id string) bool {
	snap := p.Current()
	if snap == nil {
		return false
	}
	_, ok := snap.Graph.RouteByID(id)
	return ok
}

// StopKnown reports whether a stop exists in the current graph.
func (p *Publisher) StopKnown(id string) bool {
	snap := p.Current()
	if snap == nil {
		return false
	}
	_, ok := snap.Graph.StopByID(id)
	return ok
}
