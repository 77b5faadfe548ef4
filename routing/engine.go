package routing

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuustard/LancasterLink/snapshot"
	"github.com/cuustard/LancasterLink/transit"
)

// Options are the engine tunables. The transfer buffers and the hub
// threshold are heuristics and stay configurable rather than constant.
type Options struct {
	MinTransferMin    int     // minimum interchange buffer at ordinary stops
	HubMinTransferMin int     // relaxed buffer at well-served hubs
	HubScoreThreshold float64 // strictly above this counts as a hub
	// HubMaxBonusMin is the hub preference expressed in equivalent
	// minutes: the busiest hub in the graph is this much cheaper to
	// route through than a stop with no services.
	HubMaxBonusMin    float64
	MaxResults        int
	WaitPenaltyFactor float64
	MaxExpansions     int
	QueryTimeout      time.Duration
}

func (o Options) withDefaults() Options {
	if o.MinTransferMin <= 0 {
		o.MinTransferMin = 5
	}
	if o.HubMinTransferMin <= 0 {
		o.HubMinTransferMin = 2
	}
	if o.HubScoreThreshold == 0 {
		o.HubScoreThreshold = 8
	}
	if o.HubMaxBonusMin <= 0 {
		o.HubMaxBonusMin = 5
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 3
	}
	if o.WaitPenaltyFactor <= 0 {
		o.WaitPenaltyFactor = 1.5
	}
	if o.MaxExpansions <= 0 {
		o.MaxExpansions = 50000
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = 5 * time.Second
	}
	return o
}

// reliabilityBuffer is the per-mode interchange slack below which a
// connection is flagged unreliable in the result. Rail needs the most
// because a missed rail connection costs the longest.
var reliabilityBuffer = map[transit.Mode]transit.MinuteOfDay{
	transit.ModeRail: 8,
	transit.ModeBus:  4,
	transit.ModeTram: 5,
}

// Engine plans journeys. It is stateless between calls; every Plan
// runs from scratch against the snapshot it is handed.
type Engine struct {
	opts Options
	log  zerolog.Logger
}

func NewEngine(opts Options, log zerolog.Logger) *Engine {
	return &Engine{opts: opts.withDefaults(), log: log}
}

// step is one traversed edge, chained back to the journey start. In a
// forward search the chain runs latest-first; in a reverse search it is
// already in travel order.
type step struct {
	prev *step
	walk bool

	// ride fields
	trip    *transit.Trip
	route   *transit.Route
	stopPos int // boarding index within trip.StopTimes
	from    string
	to      string
	walkMin float64

	schedDep transit.MinuteOfDay
	schedArr transit.MinuteOfDay
	expDep   transit.MinuteOfDay
	expArr   transit.MinuteOfDay
	live     bool
	// slack is the interchange time available before boarding, used for
	// the per-leg reliability flag. Zero on the first leg.
	slack transit.MinuteOfDay
}

// label is one search state: the best known way to be at a stop having
// last ridden a particular trip.
type label struct {
	stop string
	// time is the expected arrival at stop (forward) or the required
	// departure from stop (reverse).
	time      transit.MinuteOfDay
	cost      float64
	transfers int
	hubSum    float64
	schedTime transit.MinuteOfDay // pre-penalty scheduled counterpart of time
	lastTrip  string              // empty at origin and after walking
	boarded   bool                // any prior leg exists
	last      *step
}

// labelHeap orders by cost, then the deterministic tie-break chain:
// earlier time, fewer transfers, higher cumulative hub score, earlier
// scheduled time, stop id.
type labelHeap struct {
	items   []*label
	reverse bool // reverse searches prefer later times
}

func (h *labelHeap) Len() int { return len(h.items) }
func (h *labelHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if a.time != b.time {
		if h.reverse {
			return a.time > b.time
		}
		return a.time < b.time
	}
	if a.transfers != b.transfers {
		return a.transfers < b.transfers
	}
	if a.hubSum != b.hubSum {
		return a.hubSum > b.hubSum
	}
	if a.schedTime != b.schedTime {
		if h.reverse {
			return a.schedTime > b.schedTime
		}
		return a.schedTime < b.schedTime
	}
	return a.stop < b.stop
}
func (h *labelHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *labelHeap) Push(x interface{}) { h.items = append(h.items, x.(*label)) }
func (h *labelHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// candidate pairs a finished journey with the internal ranking keys.
type candidate struct {
	journey   Journey
	hubSum    float64
	schedTime transit.MinuteOfDay
	signature string
}

// Plan computes up to MaxResults ranked itineraries. An empty slice
// with a nil error means no route exists for this query; a *QueryError
// means the query itself is unusable; ErrTimeout means the deadline
// passed before the search completed.
func (e *Engine) Plan(ctx context.Context, snap *snapshot.Snapshot, q Query) ([]Journey, error) {
	if err := e.validate(snap, q); err != nil {
		return nil, err
	}
	origins, err := e.resolve(snap.Graph, q.Origin, "origin")
	if err != nil {
		return nil, err
	}
	dests, err := e.resolve(snap.Graph, q.Destination, "destination")
	if err != nil {
		return nil, err
	}
	for s := range origins {
		if _, ok := dests[s]; ok {
			return []Journey{}, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.QueryTimeout)
	defer cancel()

	banned := map[string]struct{}{}
	var cands []candidate
	started := time.Now()

	// Alternatives come from re-running the search with each found
	// journey's first edge excluded, so every result starts differently.
	for len(cands) < e.opts.MaxResults {
		lab, err := e.search(ctx, snap, q, origins, dests, banned)
		if err != nil {
			return nil, err
		}
		if lab == nil {
			break
		}
		c := e.assemble(snap, q, lab)
		if len(c.journey.Legs) == 0 {
			break
		}
		banned[firstEdgeKey(c.journey.Legs[0])] = struct{}{}
		cands = append(cands, c)
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.journey.Arrival != b.journey.Arrival {
			if q.ArriveBy {
				return a.journey.Departure > b.journey.Departure
			}
			return a.journey.Arrival < b.journey.Arrival
		}
		if a.journey.Transfers != b.journey.Transfers {
			return a.journey.Transfers < b.journey.Transfers
		}
		if a.hubSum != b.hubSum {
			return a.hubSum > b.hubSum
		}
		if a.schedTime != b.schedTime {
			return a.schedTime < b.schedTime
		}
		return a.signature < b.signature
	})

	out := make([]Journey, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.journey)
	}
	e.log.Debug().
		Int("results", len(out)).
		Dur("elapsed", time.Since(started)).
		Uint64("snapshot", snap.Version).
		Msg("journey query planned")
	return out, nil
}

func (e *Engine) validate(snap *snapshot.Snapshot, q Query) error {
	if snap == nil || snap.Graph == nil {
		return fmt.Errorf("no snapshot available")
	}
	if len(q.Modes) == 0 {
		return &QueryError{Field: "modes", Reason: "at least one mode is required"}
	}
	if q.When.IsZero() {
		return &QueryError{Field: "datetime", Reason: "a departure or arrival time is required"}
	}
	return nil
}

func (e *Engine) resolve(g *transit.Graph, p Place, field string) (map[string]struct{}, error) {
	stops := map[string]struct{}{}
	switch {
	case p.StopID != "":
		if _, ok := g.StopByID(p.StopID); !ok {
			return nil, &QueryError{Field: field, Reason: fmt.Sprintf("unknown stop %q", p.StopID)}
		}
		stops[p.StopID] = struct{}{}
	case p.LocalityID != "":
		if _, ok := g.LocalityByID(p.LocalityID); !ok {
			return nil, &QueryError{Field: field, Reason: fmt.Sprintf("unknown locality %q", p.LocalityID)}
		}
		for _, id := range g.StopsInLocality(p.LocalityID) {
			stops[id] = struct{}{}
		}
		if len(stops) == 0 {
			return nil, &QueryError{Field: field, Reason: fmt.Sprintf("locality %q has no stops", p.LocalityID)}
		}
	default:
		return nil, &QueryError{Field: field, Reason: "a stop or locality is required"}
	}
	return stops, nil
}

// search runs one label-correcting pass and returns the settled label
// at the best goal stop, or nil when no path exists. banned excludes
// candidate first edges, which is how alternatives are generated.
func (e *Engine) search(ctx context.Context, snap *snapshot.Snapshot, q Query, origins, dests map[string]struct{}, banned map[string]struct{}) (*label, error) {
	if q.ArriveBy {
		return e.searchReverse(ctx, snap, q, origins, dests, banned)
	}
	return e.searchForward(ctx, snap, q, origins, dests, banned)
}

func labelKey(stop, lastTrip string) string { return stop + "|" + lastTrip }

func firstEdgeKey(l Leg) string {
	if l.Walk() {
		return "walk:" + l.From.ID + ">" + l.To.ID
	}
	return fmt.Sprintf("%s@%s#%d", l.TripID, l.From.ID, l.ScheduledDeparture)
}

func (e *Engine) searchForward(ctx context.Context, snap *snapshot.Snapshot, q Query, origins, dests map[string]struct{}, banned map[string]struct{}) (*label, error) {
	g := snap.Graph
	date := q.When
	start := transit.MinuteOf(q.When)

	h := &labelHeap{}
	settled := map[string]float64{}
	for s := range origins {
		heap.Push(h, &label{stop: s, time: start, schedTime: start})
	}

	if ctx.Err() != nil {
		return nil, ErrTimeout
	}
	expansions := 0
	for h.Len() > 0 {
		cur := heap.Pop(h).(*label)
		key := labelKey(cur.stop, cur.lastTrip)
		if best, ok := settled[key]; ok && best <= cur.cost {
			continue
		}
		settled[key] = cur.cost

		if _, goal := dests[cur.stop]; goal && cur.last != nil {
			return cur, nil
		}

		expansions++
		if expansions%256 == 0 && ctx.Err() != nil {
			return nil, ErrTimeout
		}
		if expansions > e.opts.MaxExpansions {
			return nil, ErrTimeout
		}

		// Stay on board: the same trip's next edge is reachable even when
		// the live delay pushes its scheduled departure behind us.
		if cur.last != nil && !cur.last.walk {
			if next, ok := continuation(cur.last); ok {
				e.relaxRide(snap, h, settled, cur, next, date, true)
			}
		}

		for _, d := range g.DeparturesFrom(cur.stop, cur.time, date, q.Modes) {
			if d.Trip.ID == cur.lastTrip {
				continue // continuation handled above
			}
			if cur.last == nil {
				if _, skip := banned[fmt.Sprintf("%s@%s#%d", d.Trip.ID, d.From, d.Departs)]; skip {
					continue
				}
			}
			e.relaxRide(snap, h, settled, cur, d, date, false)
		}

		for _, wc := range g.WalksFrom(cur.stop) {
			if cur.last != nil && cur.last.walk {
				continue // no walk chains, connections are already stitched
			}
			if cur.last == nil {
				if _, skip := banned["walk:"+wc.FromStop+">"+wc.ToStop]; skip {
					continue
				}
			}
			e.relaxWalk(snap, h, settled, cur, wc, date, false)
		}
	}
	return nil, nil
}

// continuation builds the same-trip edge following a ride step.
func continuation(last *step) (transit.Departure, bool) {
	pos := last.stopPos + 1
	if pos+1 >= len(last.trip.StopTimes) {
		return transit.Departure{}, false
	}
	from := last.trip.StopTimes[pos]
	to := last.trip.StopTimes[pos+1]
	return transit.Departure{
		Trip:    last.trip,
		Route:   last.route,
		StopPos: pos,
		From:    from.StopID,
		To:      to.StopID,
		Departs: from.Departure,
		Arrives: to.Arrival,
	}, true
}

func (e *Engine) relaxRide(snap *snapshot.Snapshot, h *labelHeap, settled map[string]float64, cur *label, d transit.Departure, date time.Time, sameTrip bool) {
	now := date
	routePen := snap.Disruptions.ForRoute(d.Route.ID, now)
	if routePen.Unusable {
		return
	}
	if snap.Disruptions.ForStop(d.From, now).Unusable {
		return // closed stop, no boarding
	}
	stopPen := snap.Disruptions.ForStop(d.To, now)
	if stopPen.Unusable {
		return
	}

	delayMin, live := snap.Live.DelayMinutes(d.Trip.ID, d.Route.ID)
	delay := transit.MinuteOfDay(math.Round(delayMin))
	expDep := d.Departs + delay
	expArr := d.Arrives + delay

	if expDep < cur.time {
		return // already missed it
	}
	slack := expDep - cur.time
	transfers := cur.transfers
	if !sameTrip && cur.boarded {
		if slack < e.transferBuffer(snap.Graph, cur.stop) {
			return // fragile connection, never offered
		}
		if cur.lastTrip != "" {
			transfers++
		}
	}

	wait := float64(slack)
	if sameTrip {
		wait = 0 // dwell on board is not a platform wait
	}
	travel := float64(expArr - expDep)
	toStop, _ := snap.Graph.StopByID(d.To)
	cost := cur.cost + wait*e.opts.WaitPenaltyFactor + travel +
		routePen.ExtraMinutes + stopPen.ExtraMinutes + e.hubFriction(snap.Graph, toStop)

	key := labelKey(d.To, d.Trip.ID)
	if best, ok := settled[key]; ok && best <= cost {
		return
	}
	next := &label{
		stop:      d.To,
		time:      expArr,
		cost:      cost,
		transfers: transfers,
		hubSum:    cur.hubSum + toStop.HubScore,
		schedTime: d.Arrives,
		lastTrip:  d.Trip.ID,
		boarded:   true,
		last: &step{
			prev:     cur.last,
			trip:     d.Trip,
			route:    d.Route,
			stopPos:  d.StopPos,
			from:     d.From,
			to:       d.To,
			schedDep: d.Departs,
			schedArr: d.Arrives,
			expDep:   expDep,
			expArr:   expArr,
			live:     live,
			slack:    slack,
		},
	}
	heap.Push(h, next)
}

func (e *Engine) relaxWalk(snap *snapshot.Snapshot, h *labelHeap, settled map[string]float64, cur *label, wc transit.WalkingConnection, now time.Time, reverse bool) {
	if pen := snap.Disruptions.ForStop(wc.ToStop, now); pen.Unusable {
		return
	}
	walk := transit.MinuteOfDay(math.Ceil(wc.WalkMinutes))
	cost := cur.cost + wc.WalkMinutes

	from, to := wc.FromStop, wc.ToStop
	var t transit.MinuteOfDay
	if reverse {
		t = cur.time - walk
	} else {
		t = cur.time + walk
	}

	key := labelKey(to, "")
	if reverse {
		key = labelKey(from, "")
	}
	if best, ok := settled[key]; ok && best <= cost {
		return
	}

	var endStop transit.Stop
	if reverse {
		endStop, _ = snap.Graph.StopByID(from)
	} else {
		endStop, _ = snap.Graph.StopByID(to)
	}
	next := &label{
		stop:      endStop.ID,
		time:      t,
		cost:      cost,
		transfers: cur.transfers,
		hubSum:    cur.hubSum + endStop.HubScore,
		schedTime: t,
		lastTrip:  "",
		boarded:   true,
		last: &step{
			prev:     cur.last,
			walk:     true,
			from:     from,
			to:       to,
			walkMin:  wc.WalkMinutes,
			schedDep: cur.time,
			schedArr: t,
			expDep:   cur.time,
			expArr:   t,
		},
	}
	if reverse {
		next.last.schedDep = t
		next.last.schedArr = cur.time
		next.last.expDep = t
		next.last.expArr = cur.time
	}
	heap.Push(h, next)
}

func (e *Engine) searchReverse(ctx context.Context, snap *snapshot.Snapshot, q Query, origins, dests map[string]struct{}, banned map[string]struct{}) (*label, error) {
	g := snap.Graph
	date := q.When
	deadline := transit.MinuteOf(q.When)

	h := &labelHeap{reverse: true}
	settled := map[string]float64{}
	for s := range dests {
		heap.Push(h, &label{stop: s, time: deadline, schedTime: deadline})
	}

	if ctx.Err() != nil {
		return nil, ErrTimeout
	}
	expansions := 0
	for h.Len() > 0 {
		cur := heap.Pop(h).(*label)
		key := labelKey(cur.stop, cur.lastTrip)
		if best, ok := settled[key]; ok && best <= cur.cost {
			continue
		}
		settled[key] = cur.cost

		if _, goal := origins[cur.stop]; goal && cur.last != nil {
			return cur, nil
		}

		expansions++
		if expansions%256 == 0 && ctx.Err() != nil {
			return nil, ErrTimeout
		}
		if expansions > e.opts.MaxExpansions {
			return nil, ErrTimeout
		}

		for _, d := range g.ArrivalsAt(cur.stop, cur.time, date, q.Modes) {
			// A reverse search reaches the journey's first edge last, so
			// first-edge exclusion applies where the edge leaves an origin.
			if _, isOrigin := origins[d.From]; isOrigin {
				if _, skip := banned[fmt.Sprintf("%s@%s#%d", d.Trip.ID, d.From, d.Departs)]; skip {
					continue
				}
			}
			e.relaxRideReverse(snap, h, settled, cur, d, date)
		}
		for _, wc := range g.WalksTo(cur.stop) {
			if cur.last != nil && cur.last.walk {
				continue
			}
			if _, isOrigin := origins[wc.FromStop]; isOrigin {
				if _, skip := banned["walk:"+wc.FromStop+">"+wc.ToStop]; skip {
					continue
				}
			}
			e.relaxWalk(snap, h, settled, cur, wc, date, true)
		}
	}
	return nil, nil
}

func (e *Engine) relaxRideReverse(snap *snapshot.Snapshot, h *labelHeap, settled map[string]float64, cur *label, d transit.Departure, date time.Time) {
	now := date
	routePen := snap.Disruptions.ForRoute(d.Route.ID, now)
	if routePen.Unusable {
		return
	}
	if pen := snap.Disruptions.ForStop(d.From, now); pen.Unusable {
		return // closed stop, no boarding
	}
	stopPen := snap.Disruptions.ForStop(d.To, now)
	if stopPen.Unusable {
		return
	}

	delayMin, live := snap.Live.DelayMinutes(d.Trip.ID, d.Route.ID)
	delay := transit.MinuteOfDay(math.Round(delayMin))
	expDep := d.Departs + delay
	expArr := d.Arrives + delay

	if expArr > cur.time {
		return // arrives after we must already have left
	}
	slack := cur.time - expArr
	transfers := cur.transfers
	sameTrip := d.Trip.ID == cur.lastTrip
	if !sameTrip && cur.boarded {
		if slack < e.transferBuffer(snap.Graph, cur.stop) {
			return
		}
		if cur.lastTrip != "" {
			transfers++
		}
	}

	wait := float64(slack)
	if sameTrip {
		wait = 0
	}
	travel := float64(expArr - expDep)
	toStop, _ := snap.Graph.StopByID(d.To)
	cost := cur.cost + wait*e.opts.WaitPenaltyFactor + travel +
		routePen.ExtraMinutes + stopPen.ExtraMinutes + e.hubFriction(snap.Graph, toStop)

	key := labelKey(d.From, d.Trip.ID)
	if best, ok := settled[key]; ok && best <= cost {
		return
	}

	fromStop, _ := snap.Graph.StopByID(d.From)
	heap.Push(h, &label{
		stop:      d.From,
		time:      expDep,
		cost:      cost,
		transfers: transfers,
		hubSum:    cur.hubSum + fromStop.HubScore,
		schedTime: d.Departs,
		lastTrip:  d.Trip.ID,
		boarded:   true,
		last: &step{
			prev:     cur.last,
			trip:     d.Trip,
			route:    d.Route,
			stopPos:  d.StopPos,
			from:     d.From,
			to:       d.To,
			schedDep: d.Departs,
			schedArr: d.Arrives,
			expDep:   expDep,
			expArr:   expArr,
			live:     live,
			slack:    slack,
		},
	})
}

func (e *Engine) transferBuffer(g *transit.Graph, stopID string) transit.MinuteOfDay {
	if s, ok := g.StopByID(stopID); ok && s.HubScore > e.opts.HubScoreThreshold {
		return transit.MinuteOfDay(e.opts.HubMinTransferMin)
	}
	return transit.MinuteOfDay(e.opts.MinTransferMin)
}

// hubFriction is the hub preference on edge cost, rebased so weights
// stay non-negative: riding toward the busiest hub adds nothing, toward
// a stop with no services adds the full bonus-equivalent minutes.
func (e *Engine) hubFriction(g *transit.Graph, to transit.Stop) float64 {
	max := g.MaxHubScore()
	if max <= 0 {
		return 0
	}
	return e.opts.HubMaxBonusMin * (1 - math.Min(to.HubScore/max, 1))
}

// assemble reconstructs the step chain into a journey, merging
// consecutive edges of the same trip into one leg.
func (e *Engine) assemble(snap *snapshot.Snapshot, q Query, lab *label) candidate {
	var steps []*step
	for s := lab.last; s != nil; s = s.prev {
		steps = append(steps, s)
	}
	if !q.ArriveBy {
		for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
			steps[i], steps[j] = steps[j], steps[i]
		}
	} else {
		// Reverse relaxation records the interchange after each leg.
		// Recompute so every step carries the slack before its own
		// boarding, which is what the reliability flag reads.
		for i := len(steps) - 1; i > 0; i-- {
			prev := steps[i-1]
			if !prev.walk {
				steps[i].slack = steps[i].expDep - prev.expArr
				continue
			}
			if i >= 2 {
				walked := steps[i-2].expArr + transit.MinuteOfDay(math.Ceil(prev.walkMin))
				steps[i].slack = steps[i].expDep - walked
			} else {
				steps[i].slack = 0 // opening walk, paced by the rider
			}
		}
		steps[0].slack = 0
	}

	var legs []Leg
	for i := 0; i < len(steps); i++ {
		s := steps[i]
		if s.walk {
			from, _ := snap.Graph.StopByID(s.from)
			to, _ := snap.Graph.StopByID(s.to)
			legs = append(legs, Leg{
				Mode:               transit.ModeWalk,
				From:               from,
				To:                 to,
				ScheduledDeparture: s.schedDep,
				ScheduledArrival:   s.schedArr,
				ExpectedDeparture:  s.expDep,
				ExpectedArrival:    s.expArr,
				Provenance:         ProvenanceFallback,
				Reliable:           true,
			})
			continue
		}
		j := i
		for j+1 < len(steps) && !steps[j+1].walk && steps[j+1].trip.ID == s.trip.ID {
			j++
		}
		last := steps[j]
		from, _ := snap.Graph.StopByID(s.from)
		to, _ := snap.Graph.StopByID(last.to)
		prov := ProvenanceFallback
		if s.live {
			prov = ProvenanceLive
		}
		initial := len(legs) == 0
		if q.ArriveBy && i == 1 && steps[0].walk {
			initial = true // the rider paces an opening walk to this boarding
		}
		legs = append(legs, Leg{
			Mode:               s.route.Mode,
			TripID:             s.trip.ID,
			RouteID:            s.route.ID,
			Route:              s.route.Name,
			Operator:           s.route.Operator,
			From:               from,
			To:                 to,
			ScheduledDeparture: s.schedDep,
			ScheduledArrival:   last.schedArr,
			ExpectedDeparture:  s.expDep,
			ExpectedArrival:    last.expArr,
			Provenance:         prov,
			Reliable:           e.legReliable(snap, q, s, initial),
		})
		i = j
	}
	if len(legs) == 0 {
		return candidate{}
	}

	rides := 0
	reliable := 0
	for _, l := range legs {
		if !l.Walk() {
			rides++
		}
		if l.Reliable {
			reliable++
		}
	}
	transfers := 0
	if rides > 1 {
		transfers = rides - 1
	}

	first, lastLeg := legs[0], legs[len(legs)-1]
	j := Journey{
		Legs:        legs,
		Departure:   first.ExpectedDeparture,
		Arrival:     lastLeg.ExpectedArrival,
		Duration:    int(lastLeg.ExpectedArrival - first.ExpectedDeparture),
		Transfers:   transfers,
		Reliability: float64(reliable) / float64(len(legs)),
	}

	var sig strings.Builder
	for _, l := range legs {
		sig.WriteString(firstEdgeKey(l))
		sig.WriteByte(';')
	}
	return candidate{
		journey:   j,
		hubSum:    lab.hubSum,
		schedTime: lab.schedTime,
		signature: sig.String(),
	}
}

// legReliable flags a boarding with less interchange slack than the
// mode's comfort buffer, or any disruption on the route or the boarding
// stop, as risky.
func (e *Engine) legReliable(snap *snapshot.Snapshot, q Query, first *step, initial bool) bool {
	if snap.Disruptions.ForRoute(first.route.ID, q.When).Disrupted {
		return false
	}
	if snap.Disruptions.ForStop(first.from, q.When).Disrupted {
		return false
	}
	if initial {
		return true
	}
	if buf, ok := reliabilityBuffer[first.route.Mode]; ok && first.slack < buf {
		return false
	}
	return true
}
