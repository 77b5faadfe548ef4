package lancasterlink

import (
	"net/http"
	"sort"
	"time"
)

type sourceHealth struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	LastFresh string `json:"last_fresh,omitempty"`
}

type healthResponse struct {
	Status          string         `json:"status"`
	SnapshotVersion uint64         `json:"snapshot_version"`
	SnapshotBuilt   string         `json:"snapshot_built"`
	GraphStops      int            `json:"graph_stops"`
	GraphTrips      int            `json:"graph_trips"`
	Disruptions     int            `json:"active_disruptions"`
	Sources         []sourceHealth `json:"sources"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.publisher.Current()
	resp := healthResponse{
		Status:          "ok",
		SnapshotVersion: snap.Version,
		SnapshotBuilt:   snap.BuiltAt.UTC().Format(time.RFC3339),
		GraphStops:      snap.Graph.StopCount(),
		GraphTrips:      snap.Graph.TripCount(),
		Disruptions:     snap.Disruptions.Count(),
		Sources:         []sourceHealth{},
	}
	for _, src := range snap.Live.Sources() {
		sh := sourceHealth{Name: src.Name, Available: src.Available}
		if !src.LastFresh.IsZero() {
			sh.LastFresh = src.LastFresh.UTC().Format(time.RFC3339)
		}
		resp.Sources = append(resp.Sources, sh)
	}
	sort.Slice(resp.Sources, func(i, j int) bool { return resp.Sources[i].Name < resp.Sources[j].Name })
	writeJSON(w, http.StatusOK, resp)
}
