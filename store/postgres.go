// Package store loads reference data (localities, stops, routes,
// timetable, walking connections) from Postgres into the bulk dataset
// the graph builder consumes.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/cuustard/LancasterLink/transit"
)

// loadTimeout bounds the whole bulk load; a new graph version is not
// worth waiting forever for when the previous one is still serving.
const loadTimeout = 2 * time.Minute

// Store reads the reference-data schema maintained by the ingestion
// pipeline. It never writes.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func New(ctx context.Context, dsn string, log zerolog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() { s.pool.Close() }

// LoadDataset reads one consistent reference-data version. Structural
// validation happens in the graph builder, not here.
func (s *Store) LoadDataset(ctx context.Context) (transit.Dataset, error) {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	var ds transit.Dataset
	var err error
	started := time.Now()

	if ds.Localities, err = s.localities(ctx); err != nil {
		return transit.Dataset{}, err
	}
	if ds.Stops, err = s.stops(ctx); err != nil {
		return transit.Dataset{}, err
	}
	if ds.Routes, err = s.routes(ctx); err != nil {
		return transit.Dataset{}, err
	}
	if ds.Trips, err = s.trips(ctx); err != nil {
		return transit.Dataset{}, err
	}
	if ds.Walks, err = s.walks(ctx); err != nil {
		return transit.Dataset{}, err
	}

	s.log.Info().
		Int("localities", len(ds.Localities)).
		Int("stops", len(ds.Stops)).
		Int("routes", len(ds.Routes)).
		Int("trips", len(ds.Trips)).
		Int("walks", len(ds.Walks)).
		Dur("elapsed", time.Since(started)).
		Msg("reference dataset loaded")
	return ds, nil
}

func (s *Store) localities(ctx context.Context) ([]transit.Locality, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, region, lat, lon
		FROM localities`)
	if err != nil {
		return nil, fmt.Errorf("store: localities: %w", err)
	}
	defer rows.Close()

	var out []transit.Locality
	for rows.Next() {
		var l transit.Locality
		if err := rows.Scan(&l.ID, &l.Name, &l.Region, &l.Lat, &l.Lon); err != nil {
			return nil, fmt.Errorf("store: localities: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) stops(ctx context.Context) ([]transit.Stop, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, mode, lat, lon, COALESCE(locality_id, ''), COALESCE(hub_score, 0)
		FROM stops`)
	if err != nil {
		return nil, fmt.Errorf("store: stops: %w", err)
	}
	defer rows.Close()

	var out []transit.Stop
	for rows.Next() {
		var st transit.Stop
		var mode string
		if err := rows.Scan(&st.ID, &st.Name, &mode, &st.Lat, &st.Lon, &st.LocalityID, &st.HubScore); err != nil {
			return nil, fmt.Errorf("store: stops: %w", err)
		}
		m, ok := transit.ParseMode(mode)
		if !ok {
			return nil, fmt.Errorf("store: stops: stop %q has unknown mode %q", st.ID, mode)
		}
		st.Mode = m
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) routes(ctx context.Context) ([]transit.Route, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, operator, name, mode
		FROM routes`)
	if err != nil {
		return nil, fmt.Errorf("store: routes: %w", err)
	}
	defer rows.Close()

	var out []transit.Route
	for rows.Next() {
		var r transit.Route
		var mode string
		if err := rows.Scan(&r.ID, &r.Operator, &r.Name, &mode); err != nil {
			return nil, fmt.Errorf("store: routes: %w", err)
		}
		m, ok := transit.ParseMode(mode)
		if !ok {
			return nil, fmt.Errorf("store: routes: route %q has unknown mode %q", r.ID, mode)
		}
		r.Mode = m
		out = append(out, r)
	}
	return out, rows.Err()
}

// trips reads the flat timetable, ordered so that each trip's calls
// arrive together and can be grouped in a single pass.
func (s *Store) trips(ctx context.Context) ([]transit.Trip, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.route_id,
		       COALESCE(t.valid_from, 'epoch'::timestamptz), COALESCE(t.valid_to, 'epoch'::timestamptz),
		       COALESCE(t.days, ''),
		       c.stop_id, c.seq, c.arrival_min, c.departure_min
		FROM trips t
		JOIN timetable c ON c.trip_id = t.id
		ORDER BY t.id, c.seq`)
	if err != nil {
		return nil, fmt.Errorf("store: trips: %w", err)
	}
	defer rows.Close()

	var out []transit.Trip
	var cur *transit.Trip
	for rows.Next() {
		var (
			id, routeID, days string
			validFrom         time.Time
			validTo           time.Time
			call              transit.StopTime
		)
		if err := rows.Scan(&id, &routeID, &validFrom, &validTo, &days,
			&call.StopID, &call.Seq, &call.Arrival, &call.Departure); err != nil {
			return nil, fmt.Errorf("store: trips: %w", err)
		}
		if cur == nil || cur.ID != id {
			out = append(out, transit.Trip{
				ID:        id,
				RouteID:   routeID,
				ValidFrom: zeroEpoch(validFrom),
				ValidTo:   zeroEpoch(validTo),
				Days:      transit.ParseDays(days),
			})
			cur = &out[len(out)-1]
		}
		cur.StopTimes = append(cur.StopTimes, call)
	}
	return out, rows.Err()
}

func (s *Store) walks(ctx context.Context) ([]transit.WalkingConnection, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT from_stop, to_stop, walk_minutes, distance_m
		FROM walking_connections`)
	if err != nil {
		return nil, fmt.Errorf("store: walks: %w", err)
	}
	defer rows.Close()

	var out []transit.WalkingConnection
	for rows.Next() {
		var w transit.WalkingConnection
		if err := rows.Scan(&w.FromStop, &w.ToStop, &w.WalkMinutes, &w.DistanceM); err != nil {
			return nil, fmt.Errorf("store: walks: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// zeroEpoch maps the sentinel used for NULL validity bounds back to the
// zero time the model treats as open-ended.
func zeroEpoch(t time.Time) time.Time {
	if t.Unix() == 0 {
		return time.Time{}
	}
	return t
}
