package feed

import (
	"encoding/json"
	"fmt"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// FromGTFSRT reduces a GTFS-Realtime feed message to raw events so
// GTFS-RT operators take the same normalization path as everyone else.
func FromGTFSRT(source string, fm *gtfsrtpb.FeedMessage, receivedAt time.Time) []RawEvent {
	if fm == nil {
		return nil
	}
	var events []RawEvent
	for _, entity := range fm.GetEntity() {
		if v := entity.GetVehicle(); v != nil {
			if ev, ok := positionEvent(source, v, receivedAt); ok {
				events = append(events, ev)
			}
		}
		if a := entity.GetAlert(); a != nil {
			events = append(events, alertEvents(source, entity.GetId(), a, receivedAt)...)
		}
	}
	return events
}

// ParseGTFSRT decodes raw protobuf bytes into a feed message.
func ParseGTFSRT(data []byte) (*gtfsrtpb.FeedMessage, error) {
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(data, &fm); err != nil {
		return nil, fmt.Errorf("parse GTFS-RT: %w", err)
	}
	return &fm, nil
}

func positionEvent(source string, v *gtfsrtpb.VehiclePosition, receivedAt time.Time) (RawEvent, bool) {
	pos := v.GetPosition()
	if pos == nil {
		return RawEvent{}, false
	}
	p := positionPayload{
		VehicleID: v.GetVehicle().GetId(),
		RouteID:   v.GetTrip().GetRouteId(),
		TripID:    v.GetTrip().GetTripId(),
		Lat:       float64(pos.GetLatitude()),
		Lon:       float64(pos.GetLongitude()),
		Bearing:   float64(pos.GetBearing()),
		Speed:     float64(pos.GetSpeed()),
	}
	if p.VehicleID == "" {
		p.VehicleID = v.GetVehicle().GetLabel()
	}
	if ts := v.GetTimestamp(); ts > 0 {
		p.LastUpdated = time.Unix(int64(ts), 0)
	} else {
		p.LastUpdated = receivedAt
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return RawEvent{}, false
	}
	return RawEvent{Source: source, Kind: KindPosition, Payload: payload, ReceivedAt: receivedAt}, true
}

// alertEvents maps GTFS-RT alert effects onto the operator status
// vocabulary the normalizer understands.
func alertEvents(source, entityID string, a *gtfsrtpb.Alert, receivedAt time.Time) []RawEvent {
	status := alertStatus(a.GetEffect())
	description := firstTranslation(a.GetDescriptionText())
	if description == "" {
		description = firstTranslation(a.GetHeaderText())
	}

	var start time.Time
	var end *time.Time
	if periods := a.GetActivePeriod(); len(periods) > 0 {
		if s := periods[0].GetStart(); s > 0 {
			start = time.Unix(int64(s), 0)
		}
		if e := periods[0].GetEnd(); e > 0 {
			t := time.Unix(int64(e), 0)
			end = &t
		}
	}

	var events []RawEvent
	for i, informed := range a.GetInformedEntity() {
		p := disruptionPayload{
			ID:          fmt.Sprintf("%s-%s-%d", source, entityID, i),
			RouteID:     informed.GetRouteId(),
			StopID:      informed.GetStopId(),
			Status:      status,
			StartTime:   start,
			EndTime:     end,
			Description: description,
		}
		payload, err := json.Marshal(p)
		if err != nil {
			continue
		}
		events = append(events, RawEvent{Source: source, Kind: KindDisruption, Payload: payload, ReceivedAt: receivedAt})
	}
	return events
}

func alertStatus(effect gtfsrtpb.Alert_Effect) string {
	switch effect {
	case gtfsrtpb.Alert_NO_SERVICE:
		return "cancelled"
	case gtfsrtpb.Alert_SIGNIFICANT_DELAYS:
		return "severely delayed"
	case gtfsrtpb.Alert_DETOUR:
		return "diverted"
	case gtfsrtpb.Alert_REDUCED_SERVICE:
		return "minor delays"
	default:
		return "delayed"
	}
}

func firstTranslation(ts *gtfsrtpb.TranslatedString) string {
	for _, tr := range ts.GetTranslation() {
		if text := tr.GetText(); text != "" {
			return text
		}
	}
	return ""
}
