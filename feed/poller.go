package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// SourceMonitor hears about poll outcomes so the freshness state of each
// feed source can be tracked centrally.
type SourceMonitor interface {
	RecordPoll(source string, ok bool, at time.Time)
}

// Poller fetches one operator endpoint on a fixed cadence. Poll failures
// degrade the source to stale/unavailable via the monitor; they are never
// raised to query callers.
type Poller struct {
	name     string
	url      string
	interval time.Duration
	limiter  *rate.Limiter
	client   *http.Client
	norm     *Normalizer
	monitor  SourceMonitor
	log      zerolog.Logger
}

func NewPoller(name, url string, interval time.Duration, ratePerMin int, norm *Normalizer, monitor SourceMonitor, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if ratePerMin <= 0 {
		ratePerMin = 30
	}
	return &Poller{
		name:     name,
		url:      url,
		interval: interval,
		// keeps the aggregate request rate under the endpoint's limit
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerMin)/60.0), 1),
		client:  &http.Client{Timeout: 15 * time.Second},
		norm:    norm,
		monitor: monitor,
		log:     log.With().Str("source", name).Logger(),
	}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.pollOnce(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}
	events, err := p.fetch(ctx)
	now := time.Now()
	if err != nil {
		p.log.Warn().Err(err).Msg("poll failed, source degraded to stale")
		p.monitor.RecordPoll(p.name, false, now)
		return
	}
	for _, ev := range events {
		ev.Source = p.name
		if ev.ReceivedAt.IsZero() {
			ev.ReceivedAt = now
		}
		if err := p.norm.Ingest(ev); err != nil {
			// already logged by the normalizer; an isolated bad event
			// must not fail the poll
			continue
		}
	}
	p.monitor.RecordPoll(p.name, true, now)
}

func (p *Poller) fetch(ctx context.Context) ([]RawEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, p.url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var events []RawEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("decode events from %s: %w", p.url, err)
	}
	return events, nil
}
