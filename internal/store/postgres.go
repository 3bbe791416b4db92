package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-catalog/internal/db"
	"github.com/sells-group/vehicle-catalog/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller owns its lifetime.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS vehicles (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	key        TEXT NOT NULL UNIQUE,
	brand      TEXT NOT NULL,
	title      TEXT NOT NULL,
	body_type  TEXT,
	source_url TEXT,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS vehicle_variants (
	vehicle_id      TEXT NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	name            TEXT NOT NULL,
	price           BIGINT,
	old_price       BIGINT,
	private_leasing BIGINT,
	company_leasing BIGINT,
	loan_price      BIGINT,
	fuel_type       TEXT,
	transmission    TEXT,
	PRIMARY KEY (vehicle_id, position)
);

CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	vehicle_count INTEGER NOT NULL,
	variant_count INTEGER NOT NULL,
	issue_count   INTEGER NOT NULL,
	total_cost    DOUBLE PRECISION NOT NULL,
	result        JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_vehicles_brand ON vehicles(lower(brand));
CREATE INDEX IF NOT EXISTS idx_variants_price ON vehicle_variants(price);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// UpsertVehicle writes the vehicle row keyed by its normalized key, then
// replaces its variants with a COPY. xmax is zero only for freshly inserted
// rows, which tells created apart from updated in one round trip.
func (s *PostgresStore) UpsertVehicle(ctx context.Context, v model.Vehicle) (string, bool, error) {
	key, err := vehicleKey(v)
	if err != nil {
		return "", false, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", false, eris.Wrap(err, "postgres: marshal vehicle")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", false, eris.Wrap(err, "postgres: begin upsert")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	var id string
	var created bool
	err = tx.QueryRow(ctx,
		`INSERT INTO vehicles (id, key, brand, title, body_type, source_url, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 ON CONFLICT (key) DO UPDATE SET
		   brand = EXCLUDED.brand, title = EXCLUDED.title, body_type = EXCLUDED.body_type,
		   source_url = EXCLUDED.source_url, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
		 RETURNING id, (xmax = 0) AS created`,
		uuid.New().String(), key, v.Brand, v.Title, v.BodyType, v.SourceURL, data, now,
	).Scan(&id, &created)
	if err != nil {
		return "", false, eris.Wrapf(err, "postgres: upsert vehicle %s", key)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM vehicle_variants WHERE vehicle_id = $1`, id); err != nil {
		return "", false, eris.Wrapf(err, "postgres: clear variants %s", key)
	}
	if _, err := db.CopyFrom(ctx, tx, "vehicle_variants", variantColumns, variantRows(id, v)); err != nil {
		return "", false, eris.Wrapf(err, "postgres: copy variants %s", key)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, eris.Wrap(err, "postgres: commit upsert")
	}
	return id, created, nil
}

func (s *PostgresStore) ListVehicles(ctx context.Context, filter VehicleFilter) ([]VehicleRecord, error) {
	query := `SELECT id, key, data, created_at, updated_at FROM vehicles`
	args := []any{listLimit(filter.Limit)}
	if filter.Brand != "" {
		query += ` WHERE lower(brand) = lower($2)`
		args = append(args, filter.Brand)
	}
	query += ` ORDER BY key LIMIT $1`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list vehicles")
	}
	defer rows.Close()

	var out []VehicleRecord
	for rows.Next() {
		var rec VehicleRecord
		var data []byte
		if err := rows.Scan(&rec.ID, &rec.Key, &data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan vehicle")
		}
		if err := json.Unmarshal(data, &rec.Vehicle); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal vehicle %s", rec.Key)
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list vehicles iterate")
}

func (s *PostgresStore) SaveRun(ctx context.Context, result *model.ReconciliationResult) (string, error) {
	rec, data, err := runSummary(result)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, vehicle_count, variant_count, issue_count, total_cost, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, rec.VehicleCount, rec.VariantCount, rec.IssueCount, rec.TotalCost, data, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert run")
	}
	return id, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	var rec RunRecord
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, vehicle_count, variant_count, issue_count, total_cost, result, created_at FROM runs WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.VehicleCount, &rec.VariantCount, &rec.IssueCount, &rec.TotalCost, &data, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	rec.Result = &model.ReconciliationResult{}
	if err := json.Unmarshal(data, rec.Result); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal result")
	}
	return &rec, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, vehicle_count, variant_count, issue_count, total_cost, created_at FROM runs
		 ORDER BY created_at DESC LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.VehicleCount, &rec.VariantCount, &rec.IssueCount, &rec.TotalCost, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
