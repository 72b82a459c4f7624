// Package pgstore is an optional, caller-owned persistence adapter for
// calibration.Registry, backed by Postgres via github.com/jackc/pgx/v5.
// It lives outside the core package: persistent stores belong to the
// caller layer, and the core never imports a database driver.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kvitto/fakturaextrakt/calibration"
)

// Store is a Postgres-backed calibration.Registry plus the write path
// a calibration job uses to persist a newly fit Model. It holds its own
// connection pool; callers construct one with Open and Close it when
// done, rather than reaching for a global.
type Store struct {
	pool *pgxpool.Pool
}

// Open parses databaseURL, builds a connection pool with conservative
// limits suited to PgBouncer-fronted deployments, and verifies
// connectivity before returning.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// modelRow is the JSON-serialized shape of a fit calibration.Model,
// matching the unexported breakpoints/values slices exposed for storage
// purposes only through this shape.
type modelRow struct {
	Breakpoints []float64 `json:"breakpoints"`
	Values      []float64 `json:"values"`
}

// Save persists a fit model for field, keyed by its sanitized name, as a
// JSON blob with an updated_at timestamp.
func (s *Store) Save(ctx context.Context, field string, model *calibration.Model) error {
	name := calibration.SanitizeArtefactName(field)
	payload, err := json.Marshal(modelRow{Breakpoints: model.Breakpoints(), Values: model.Values()})
	if err != nil {
		return fmt.Errorf("marshaling model for %s: %w", field, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO calibration_models (field, model, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (field) DO UPDATE SET model = EXCLUDED.model, updated_at = now()
	`, name, payload)
	if err != nil {
		return fmt.Errorf("saving model for %s: %w", field, err)
	}
	return nil
}

// LoadAll reads every stored model into a calibration.MapRegistry,
// suitable for a caller to assign directly to Profile.Calibration.Registry
// at process startup.
func (s *Store) LoadAll(ctx context.Context) (*calibration.MapRegistry, error) {
	rows, err := s.pool.Query(ctx, `SELECT field, model FROM calibration_models`)
	if err != nil {
		return nil, fmt.Errorf("querying calibration models: %w", err)
	}
	defer rows.Close()

	models := make(map[string]*calibration.Model)
	for rows.Next() {
		var field string
		var payload []byte
		if err := rows.Scan(&field, &payload); err != nil {
			return nil, fmt.Errorf("scanning calibration model row: %w", err)
		}
		var row modelRow
		if err := json.Unmarshal(payload, &row); err != nil {
			return nil, fmt.Errorf("unmarshaling model for %s: %w", field, err)
		}
		models[field] = calibration.FromBreakpoints(row.Breakpoints, row.Values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating calibration models: %w", err)
	}
	return calibration.NewMapRegistry(models), nil
}
