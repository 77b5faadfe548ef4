package lancasterlink

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cuustard/LancasterLink/routing"
	"github.com/cuustard/LancasterLink/transit"
)

type stopRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type legResponse struct {
	Mode               string  `json:"mode"`
	TripID             string  `json:"trip_id,omitempty"`
	Route              string  `json:"route,omitempty"`
	Operator           string  `json:"operator,omitempty"`
	From               stopRef `json:"from"`
	To                 stopRef `json:"to"`
	ScheduledDeparture string  `json:"scheduled_departure"`
	ScheduledArrival   string  `json:"scheduled_arrival"`
	ExpectedDeparture  string  `json:"expected_departure"`
	ExpectedArrival    string  `json:"expected_arrival"`
	Provenance         string  `json:"provenance"`
	Reliable           bool    `json:"reliable"`
}

type journeyResponse struct {
	Legs        []legResponse `json:"legs"`
	Departure   string        `json:"departure"`
	Arrival     string        `json:"arrival"`
	DurationMin int           `json:"duration_minutes"`
	Transfers   int           `json:"transfers"`
	Reliability float64       `json:"reliability"`
}

type journeysResponse struct {
	Journeys []journeyResponse `json:"journeys"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func renderJourneys(js []routing.Journey) journeysResponse {
	out := journeysResponse{Journeys: make([]journeyResponse, 0, len(js))}
	for _, j := range js {
		legs := make([]legResponse, 0, len(j.Legs))
		for _, l := range j.Legs {
			legs = append(legs, legResponse{
				Mode:               string(l.Mode),
				TripID:             l.TripID,
				Route:              l.Route,
				Operator:           l.Operator,
				From:               stopRef{ID: l.From.ID, Name: l.From.Name},
				To:                 stopRef{ID: l.To.ID, Name: l.To.Name},
				ScheduledDeparture: l.ScheduledDeparture.Clock(),
				ScheduledArrival:   l.ScheduledArrival.Clock(),
				ExpectedDeparture:  l.ExpectedDeparture.Clock(),
				ExpectedArrival:    l.ExpectedArrival.Clock(),
				Provenance:         string(l.Provenance),
				Reliable:           l.Reliable,
			})
		}
		out.Journeys = append(out.Journeys, journeyResponse{
			Legs:        legs,
			Departure:   j.Departure.Clock(),
			Arrival:     j.Arrival.Clock(),
			DurationMin: j.Duration,
			Transfers:   j.Transfers,
			Reliability: j.Reliability,
		})
	}
	return out
}

type boardEntryResponse struct {
	TripID      string  `json:"trip_id"`
	Route       string  `json:"route"`
	Operator    string  `json:"operator"`
	Mode        string  `json:"mode"`
	Destination stopRef `json:"destination"`
	Scheduled   string  `json:"scheduled"`
	Expected    string  `json:"expected"`
	Provenance  string  `json:"provenance"`
	Cancelled   bool    `json:"cancelled"`
}

type boardResponse struct {
	Stop       stopRef              `json:"stop"`
	Departures []boardEntryResponse `json:"departures"`
}

func renderBoard(stop transit.Stop, entries []routing.BoardEntry) boardResponse {
	out := boardResponse{
		Stop:       stopRef{ID: stop.ID, Name: stop.Name},
		Departures: make([]boardEntryResponse, 0, len(entries)),
	}
	for _, e := range entries {
		out.Departures = append(out.Departures, boardEntryResponse{
			TripID:      e.TripID,
			Route:       e.Route,
			Operator:    e.Operator,
			Mode:        string(e.Mode),
			Destination: stopRef{ID: e.Destination.ID, Name: e.Destination.Name},
			Scheduled:   e.Scheduled.Clock(),
			Expected:    e.Expected.Clock(),
			Provenance:  string(e.Provenance),
			Cancelled:   e.Cancelled,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeQueryError maps engine outcomes onto status codes with a plain
// message; internal faults never leak their details to the caller.
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	var qe *routing.QueryError
	switch {
	case errors.As(err, &qe):
		s.observe("invalid")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: qe.Error()})
	case errors.Is(err, routing.ErrTimeout):
		s.observe("timeout")
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "the journey search took too long, please try again"})
	default:
		s.observe("error")
		s.log.Error().Err(err).Msg("journey query failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "something went wrong handling the request"})
	}
}

func (s *Server) observe(outcome string) {
	if s.collector != nil {
		s.collector.Queries.WithLabelValues(outcome).Inc()
	}
}
