package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/vehicle-catalog/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS vehicles (
	id         TEXT PRIMARY KEY,
	key        TEXT NOT NULL UNIQUE,
	brand      TEXT NOT NULL,
	title      TEXT NOT NULL,
	body_type  TEXT,
	source_url TEXT,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS vehicle_variants (
	vehicle_id      TEXT NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	name            TEXT NOT NULL,
	price           INTEGER,
	old_price       INTEGER,
	private_leasing INTEGER,
	company_leasing INTEGER,
	loan_price      INTEGER,
	fuel_type       TEXT,
	transmission    TEXT,
	PRIMARY KEY (vehicle_id, position)
);

CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	vehicle_count INTEGER NOT NULL,
	variant_count INTEGER NOT NULL,
	issue_count   INTEGER NOT NULL,
	total_cost    REAL NOT NULL,
	result        TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_vehicles_brand ON vehicles(brand);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertVehicle(ctx context.Context, v model.Vehicle) (string, bool, error) {
	key, err := vehicleKey(v)
	if err != nil {
		return "", false, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", false, eris.Wrap(err, "sqlite: marshal vehicle")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	var id string
	created := false
	err = tx.QueryRowContext(ctx, `SELECT id FROM vehicles WHERE key = ?`, key).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.New().String()
		created = true
		_, err = tx.ExecContext(ctx,
			`INSERT INTO vehicles (id, key, brand, title, body_type, source_url, data, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, key, v.Brand, v.Title, v.BodyType, v.SourceURL, string(data), now, now,
		)
		if err != nil {
			return "", false, eris.Wrapf(err, "sqlite: insert vehicle %s", key)
		}
	case err != nil:
		return "", false, eris.Wrapf(err, "sqlite: lookup vehicle %s", key)
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE vehicles SET brand = ?, title = ?, body_type = ?, source_url = ?, data = ?, updated_at = ? WHERE id = ?`,
			v.Brand, v.Title, v.BodyType, v.SourceURL, string(data), now, id,
		)
		if err != nil {
			return "", false, eris.Wrapf(err, "sqlite: update vehicle %s", key)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vehicle_variants WHERE vehicle_id = ?`, id); err != nil {
		return "", false, eris.Wrapf(err, "sqlite: clear variants %s", key)
	}
	insert := `INSERT INTO vehicle_variants (` + strings.Join(variantColumns, ", ") + `) VALUES (?` +
		strings.Repeat(", ?", len(variantColumns)-1) + `)`
	for _, row := range variantRows(id, v) {
		if _, err := tx.ExecContext(ctx, insert, row...); err != nil {
			return "", false, eris.Wrapf(err, "sqlite: insert variant for %s", key)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, eris.Wrap(err, "sqlite: commit upsert")
	}
	return id, created, nil
}

func (s *SQLiteStore) ListVehicles(ctx context.Context, filter VehicleFilter) ([]VehicleRecord, error) {
	query := `SELECT id, key, data, created_at, updated_at FROM vehicles WHERE 1=1`
	var args []any
	if filter.Brand != "" {
		query += ` AND lower(brand) = lower(?)`
		args = append(args, filter.Brand)
	}
	query += ` ORDER BY key LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list vehicles")
	}
	defer rows.Close()

	var out []VehicleRecord
	for rows.Next() {
		var rec VehicleRecord
		var data string
		if err := rows.Scan(&rec.ID, &rec.Key, &data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vehicle")
		}
		if err := json.Unmarshal([]byte(data), &rec.Vehicle); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal vehicle %s", rec.Key)
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list vehicles iterate")
}

func (s *SQLiteStore) SaveRun(ctx context.Context, result *model.ReconciliationResult) (string, error) {
	rec, data, err := runSummary(result)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, vehicle_count, variant_count, issue_count, total_cost, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, rec.VehicleCount, rec.VariantCount, rec.IssueCount, rec.TotalCost, string(data), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert run")
	}
	return id, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	var rec RunRecord
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, vehicle_count, variant_count, issue_count, total_cost, result, created_at FROM runs WHERE id = ?`,
		id,
	).Scan(&rec.ID, &rec.VehicleCount, &rec.VariantCount, &rec.IssueCount, &rec.TotalCost, &data, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}
	rec.Result = &model.ReconciliationResult{}
	if err := json.Unmarshal([]byte(data), rec.Result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal result")
	}
	return &rec, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vehicle_count, variant_count, issue_count, total_cost, created_at FROM runs
		 ORDER BY created_at DESC LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.VehicleCount, &rec.VariantCount, &rec.IssueCount, &rec.TotalCost, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
