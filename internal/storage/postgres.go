package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmisilo/hackyeah-2025-sub000/internal/geo"
	"github.com/jmisilo/hackyeah-2025-sub000/internal/network"
)

// loadTimeout bounds the whole dataset load at startup.
const loadTimeout = 30 * time.Second

// pgNetworkRepository is the pgx-backed implementation of NetworkRepository.
type pgNetworkRepository struct {
	pool *pgxpool.Pool
}

// NewNetworkRepository creates a NetworkRepository backed by the given
// connection pool.
func NewNetworkRepository(pool *pgxpool.Pool) NetworkRepository {
	return &pgNetworkRepository{pool: pool}
}

// LoadDataset reads the complete static network.
func (r *pgNetworkRepository) LoadDataset(ctx context.Context) (network.Dataset, error) {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	ds := network.Dataset{Disruptions: make(map[string][]network.Disruption)}

	lines, err := r.loadLines(ctx)
	if err != nil {
		return ds, fmt.Errorf("storage: LoadDataset: %w", err)
	}
	ds.Lines = lines

	stops, err := r.loadStops(ctx)
	if err != nil {
		return ds, fmt.Errorf("storage: LoadDataset: %w", err)
	}
	ds.Stops = stops

	if err := r.loadDisruptions(ctx, ds.Disruptions); err != nil {
		return ds, fmt.Errorf("storage: LoadDataset: %w", err)
	}

	return ds, nil
}

func (r *pgNetworkRepository) loadStops(ctx context.Context) ([]network.Stop, error) {
	const q = `
		SELECT s.id, s.name, s.lat, s.lon, s.class,
		       COALESCE(array_agg(ls.line_id ORDER BY ls.line_id)
		                FILTER (WHERE ls.line_id IS NOT NULL), '{}')
		FROM stops s
		LEFT JOIN line_stops ls ON ls.stop_id = s.id
		GROUP BY s.id, s.name, s.lat, s.lon, s.class
		ORDER BY s.id`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()

	var stops []network.Stop
	for rows.Next() {
		var (
			s        network.Stop
			lat, lon float64
		)
		if err := rows.Scan(&s.ID, &s.Name, &lat, &lon, &s.Class, &s.Lines); err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		s.Location = geo.Point{Lat: lat, Lon: lon}
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stops: %w", err)
	}
	return stops, nil
}

func (r *pgNetworkRepository) loadLines(ctx context.Context) ([]network.Line, error) {
	const q = `
		SELECT l.id, l.name, l.class, l.color,
		       COALESCE(array_agg(ls.stop_id ORDER BY ls.seq)
		                FILTER (WHERE ls.stop_id IS NOT NULL), '{}')
		FROM lines l
		LEFT JOIN line_stops ls ON ls.line_id = l.id
		GROUP BY l.id, l.name, l.class, l.color
		ORDER BY l.id`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer rows.Close()

	var lines []network.Line
	for rows.Next() {
		var l network.Line
		if err := rows.Scan(&l.ID, &l.Name, &l.Class, &l.Color, &l.Stops); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lines: %w", err)
	}
	return lines, nil
}

func (r *pgNetworkRepository) loadDisruptions(ctx context.Context, out map[string][]network.Disruption) error {
	const q = `
		SELECT line_id, severity, delay_minutes, title
		FROM line_disruptions
		WHERE active`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return fmt.Errorf("query disruptions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			lineID string
			d      network.Disruption
		)
		if err := rows.Scan(&lineID, &d.Severity, &d.DelayMinutes, &d.Title); err != nil {
			return fmt.Errorf("scan disruption: %w", err)
		}
		out[lineID] = append(out[lineID], d)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate disruptions: %w", err)
	}
	return nil
}
