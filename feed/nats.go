package feed

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SubscribeNATS attaches a push-style operator source: each message on
// the subject carries one RawEvent as JSON. Message arrival counts as a
// successful poll for freshness tracking.
func SubscribeNATS(conn *nats.Conn, subject, source string, norm *Normalizer, monitor SourceMonitor, log zerolog.Logger) (*nats.Subscription, error) {
	slog := log.With().Str("source", source).Str("subject", subject).Logger()
	return conn.Subscribe(subject, func(msg *nats.Msg) {
		var ev RawEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Warn().Err(err).Msg("dropping undecodable feed message")
			return
		}
		if ev.Source == "" {
			ev.Source = source
		}
		now := time.Now()
		if ev.ReceivedAt.IsZero() {
			ev.ReceivedAt = now
		}
		_ = norm.Ingest(ev) // bad events are logged and isolated inside Ingest
		monitor.RecordPoll(source, true, now)
	})
}
