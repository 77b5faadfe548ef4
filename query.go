package lancasterlink

import (
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/cuustard/LancasterLink/routing"
	"github.com/cuustard/LancasterLink/transit"
)

// cleanID normalises an identifier from the query string: surrounding
// whitespace and control characters are never part of a stop or
// locality id.
func cleanID(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)
	return strings.TrimSpace(cleaned)
}

// parseJourneyQuery maps request parameters onto a routing query.
// Endpoints take either a stop id (from/to) or a locality id
// (fromLocality/toLocality); an absent datetime means "leave now".
func parseJourneyQuery(r *http.Request) (routing.Query, error) {
	q := routing.Query{}
	params := r.URL.Query()

	q.Origin = routing.Place{
		StopID:     cleanID(params.Get("from")),
		LocalityID: cleanID(params.Get("fromLocality")),
	}
	q.Destination = routing.Place{
		StopID:     cleanID(params.Get("to")),
		LocalityID: cleanID(params.Get("toLocality")),
	}
	if q.Origin.StopID != "" && q.Origin.LocalityID != "" {
		return q, &routing.QueryError{Field: "origin", Reason: "give either a stop or a locality, not both"}
	}
	if q.Destination.StopID != "" && q.Destination.LocalityID != "" {
		return q, &routing.QueryError{Field: "destination", Reason: "give either a stop or a locality, not both"}
	}

	q.When = time.Now()
	if at := params.Get("at"); at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return q, &routing.QueryError{Field: "at", Reason: "datetime must be RFC 3339, e.g. 2026-03-04T08:50:00Z"}
		}
		q.When = t
	}
	if ab := params.Get("arriveBy"); ab != "" {
		v, err := strconv.ParseBool(ab)
		if err != nil {
			return q, &routing.QueryError{Field: "arriveBy", Reason: "must be true or false"}
		}
		q.ArriveBy = v
	}

	modes, err := parseModes(params.Get("modes"))
	if err != nil {
		return q, err
	}
	q.Modes = modes
	return q, nil
}

// parseModes parses a comma-separated mode filter. An empty parameter
// means all modes rather than none.
func parseModes(raw string) (transit.ModeSet, error) {
	if strings.TrimSpace(raw) == "" {
		return transit.NewModeSet(transit.ModeBus, transit.ModeRail, transit.ModeTram), nil
	}
	set := transit.ModeSet{}
	for _, part := range strings.Split(raw, ",") {
		m, ok := transit.ParseMode(part)
		if !ok {
			return nil, &routing.QueryError{Field: "modes", Reason: "unknown mode " + strconv.Quote(strings.TrimSpace(part)) + ", expected bus, rail or tram"}
		}
		set[m] = struct{}{}
	}
	return set, nil
}
