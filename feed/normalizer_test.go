package feed

import (
	"encoding/json"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/cuustard/LancasterLink/internal/logger"
)

type fakeRefs struct {
	routes map[string]bool
	stops  map[string]bool
}

func (f fakeRefs) RouteKnown(id string) bool { return f.routes[id] }
func (f fakeRefs) StopKnown(id string) bool  { return f.stops[id] }

type capture struct {
	positions   []VehiclePosition
	disruptions []Disruption
}

func (c *capture) ApplyPosition(p VehiclePosition) { c.positions = append(c.positions, p) }
func (c *capture) ApplyDisruption(d Disruption)    { c.disruptions = append(c.disruptions, d) }

func newTestNormalizer(t *testing.T) (*Normalizer, *capture) {
	t.Helper()
	refs := fakeRefs{
		routes: map[string]bool{"NT-LP": true, "SC-40": true},
		stops:  map[string]bool{"LAN01": true, "PRE01": true},
	}
	sink := &capture{}
	return NewNormalizer(refs, sink, sink, logger.Nop()), sink
}

func disruptionEvent(t *testing.T, p disruptionPayload) RawEvent {
	t.Helper()
	payload, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return RawEvent{Source: "northern", Kind: KindDisruption, Payload: payload, ReceivedAt: time.Now()}
}

func positionEventFor(t *testing.T, p positionPayload) RawEvent {
	t.Helper()
	payload, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return RawEvent{Source: "northern", Kind: KindPosition, Payload: payload, ReceivedAt: time.Now()}
}

func TestNormalizer_StatusVocabulary(t *testing.T) {
	tests := []struct {
		status       string
		wantType     DisruptionType
		wantSeverity Severity
	}{
		{"service withdrawn", DisruptionCancelled, SeveritySevere},
		{"Cancelled", DisruptionCancelled, SeveritySevere},
		{"severely delayed", DisruptionDelayed, SeveritySevere},
		{"running late", DisruptionDelayed, SeverityModerate},
		{"minor delays", DisruptionDelayed, SeverityMinor},
		{"diversion", DisruptionDiverted, SeverityModerate},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			n, sink := newTestNormalizer(t)
			ev := disruptionEvent(t, disruptionPayload{ID: "d1", RouteID: "NT-LP", Status: tt.status, StartTime: time.Now()})
			if err := n.Ingest(ev); err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if len(sink.disruptions) != 1 {
				t.Fatalf("expected 1 disruption, got %d", len(sink.disruptions))
			}
			d := sink.disruptions[0]
			if d.Type != tt.wantType || d.Severity != tt.wantSeverity {
				t.Errorf("got %s/%s, want %s/%s", d.Type, d.Severity, tt.wantType, tt.wantSeverity)
			}
		})
	}
}

func TestNormalizer_SeverityOverride(t *testing.T) {
	n, sink := newTestNormalizer(t)
	ev := disruptionEvent(t, disruptionPayload{ID: "d1", RouteID: "NT-LP", Status: "delayed", Severity: "severe", StartTime: time.Now()})
	if err := n.Ingest(ev); err != nil {
		t.Fatal(err)
	}
	if sink.disruptions[0].Severity != SeveritySevere {
		t.Errorf("explicit severity should win, got %s", sink.disruptions[0].Severity)
	}
}

func TestNormalizer_DropsBadEvents(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)
	tests := []struct {
		name string
		ev   func(t *testing.T) RawEvent
	}{
		{"unknown route", func(t *testing.T) RawEvent {
			return disruptionEvent(t, disruptionPayload{ID: "d1", RouteID: "GHOST", Status: "delayed", StartTime: now})
		}},
		{"unknown stop", func(t *testing.T) RawEvent {
			return disruptionEvent(t, disruptionPayload{ID: "d1", StopID: "GHOST", Status: "delayed", StartTime: now})
		}},
		{"unknown status", func(t *testing.T) RawEvent {
			return disruptionEvent(t, disruptionPayload{ID: "d1", RouteID: "NT-LP", Status: "gremlins", StartTime: now})
		}},
		{"missing id", func(t *testing.T) RawEvent {
			return disruptionEvent(t, disruptionPayload{RouteID: "NT-LP", Status: "delayed", StartTime: now})
		}},
		{"inverted window", func(t *testing.T) RawEvent {
			return disruptionEvent(t, disruptionPayload{ID: "d1", RouteID: "NT-LP", Status: "delayed", StartTime: now, EndTime: &earlier})
		}},
		{"malformed payload", func(t *testing.T) RawEvent {
			return RawEvent{Source: "northern", Kind: KindDisruption, Payload: []byte("{nope"), ReceivedAt: now}
		}},
		{"unknown kind", func(t *testing.T) RawEvent {
			return RawEvent{Source: "northern", Kind: "telemetry", Payload: []byte("{}"), ReceivedAt: now}
		}},
		{"position unknown route", func(t *testing.T) RawEvent {
			return positionEventFor(t, positionPayload{VehicleID: "v1", RouteID: "GHOST", LastUpdated: now})
		}},
		{"position missing vehicle", func(t *testing.T) RawEvent {
			return positionEventFor(t, positionPayload{RouteID: "NT-LP", LastUpdated: now})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, sink := newTestNormalizer(t)
			if err := n.Ingest(tt.ev(t)); err == nil {
				t.Error("expected an informational error")
			}
			if len(sink.disruptions) != 0 || len(sink.positions) != 0 {
				t.Error("bad event must not reach a sink")
			}
		})
	}
}

type countingMonitor struct {
	events map[string]int // by kind
	drops  int
}

func (m *countingMonitor) RecordEvent(source, kind string) {
	if m.events == nil {
		m.events = map[string]int{}
	}
	m.events[kind]++
}

func (m *countingMonitor) RecordDrop(source string) { m.drops++ }

func TestNormalizer_MonitorCountsAcceptsAndDrops(t *testing.T) {
	n, _ := newTestNormalizer(t)
	mon := &countingMonitor{}
	n.Monitor = mon

	good := disruptionEvent(t, disruptionPayload{ID: "d1", RouteID: "NT-LP", Status: "delayed", StartTime: time.Now()})
	bad := disruptionEvent(t, disruptionPayload{ID: "d2", RouteID: "GHOST", Status: "delayed", StartTime: time.Now()})

	if err := n.Ingest(good); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := n.Ingest(bad); err == nil {
		t.Fatal("expected an informational error for the unknown route")
	}
	if mon.events[string(KindDisruption)] != 1 {
		t.Errorf("accepted events = %d, want 1", mon.events[string(KindDisruption)])
	}
	if mon.drops != 1 {
		t.Errorf("dropped events = %d, want 1", mon.drops)
	}
}

func TestNormalizer_Deduplicates(t *testing.T) {
	n, sink := newTestNormalizer(t)
	ev := disruptionEvent(t, disruptionPayload{ID: "d1", RouteID: "NT-LP", Status: "delayed", StartTime: time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)})
	for i := 0; i < 3; i++ {
		if err := n.Ingest(ev); err != nil {
			t.Fatal(err)
		}
	}
	if len(sink.disruptions) != 1 {
		t.Errorf("identical repeats should be deduplicated, got %d", len(sink.disruptions))
	}
}

func TestNormalizer_Position(t *testing.T) {
	n, sink := newTestNormalizer(t)
	delay := 4.0
	ev := positionEventFor(t, positionPayload{
		VehicleID:    "v42",
		RouteID:      "SC-40",
		TripID:       "T2",
		Lat:          54.05,
		Lon:          -2.80,
		Mode:         "bus",
		DelayMinutes: &delay,
		LastUpdated:  time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC),
	})
	if err := n.Ingest(ev); err != nil {
		t.Fatal(err)
	}
	if len(sink.positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(sink.positions))
	}
	p := sink.positions[0]
	if p.Source != "northern" || p.TripID != "T2" || p.DelayMinutes == nil || *p.DelayMinutes != 4 {
		t.Errorf("unexpected position %+v", p)
	}
}

func TestDisruption_ActiveAt(t *testing.T) {
	start := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	bounded := Disruption{ID: "d", Start: start, End: &end}
	if bounded.ActiveAt(start.Add(-time.Minute)) {
		t.Error("not active before start")
	}
	if !bounded.ActiveAt(start.Add(30 * time.Minute)) {
		t.Error("active within window")
	}
	if bounded.ActiveAt(end.Add(time.Minute)) {
		t.Error("not active after end")
	}

	openEnded := Disruption{ID: "d", Start: start}
	if !openEnded.ActiveAt(start.Add(240 * time.Hour)) {
		t.Error("nil end means active indefinitely")
	}
}

func TestFromGTFSRT(t *testing.T) {
	ts := uint64(time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC).Unix())
	fm := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")},
		Entity: []*gtfsrtpb.FeedEntity{
			{
				Id: proto.String("veh-1"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Vehicle:   &gtfsrtpb.VehicleDescriptor{Id: proto.String("v1")},
					Trip:      &gtfsrtpb.TripDescriptor{RouteId: proto.String("NT-LP"), TripId: proto.String("T1")},
					Position:  &gtfsrtpb.Position{Latitude: proto.Float32(54.05), Longitude: proto.Float32(-2.80)},
					Timestamp: proto.Uint64(ts),
				},
			},
			{
				Id: proto.String("alert-1"),
				Alert: &gtfsrtpb.Alert{
					Effect: gtfsrtpb.Alert_NO_SERVICE.Enum(),
					InformedEntity: []*gtfsrtpb.EntitySelector{
						{RouteId: proto.String("NT-LP")},
					},
				},
			},
		},
	}

	events := FromGTFSRT("northern", fm, time.Now())
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	n, sink := newTestNormalizer(t)
	for _, ev := range events {
		if err := n.Ingest(ev); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
	if len(sink.positions) != 1 || len(sink.disruptions) != 1 {
		t.Fatalf("expected one position and one disruption, got %d/%d", len(sink.positions), len(sink.disruptions))
	}
	if sink.disruptions[0].Type != DisruptionCancelled {
		t.Errorf("NO_SERVICE should map to cancelled, got %s", sink.disruptions[0].Type)
	}
	if sink.positions[0].VehicleID != "v1" || sink.positions[0].RouteID != "NT-LP" {
		t.Errorf("unexpected position %+v", sink.positions[0])
	}
}
