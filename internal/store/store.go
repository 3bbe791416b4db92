// Package store persists reconciled vehicles and run results in Postgres or
// SQLite.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/reconcile"
)

// ErrNotFound is returned when a run or vehicle does not exist.
var ErrNotFound = eris.New("store: not found")

// VehicleRecord is a stored vehicle with its identity.
type VehicleRecord struct {
	ID        string        `json:"id"`
	Key       string        `json:"key"`
	Vehicle   model.Vehicle `json:"vehicle"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// RunRecord is a stored reconciliation run. Result is nil in listings.
type RunRecord struct {
	ID           string                      `json:"id"`
	VehicleCount int                         `json:"vehicle_count"`
	VariantCount int                         `json:"variant_count"`
	IssueCount   int                         `json:"issue_count"`
	TotalCost    float64                     `json:"total_cost"`
	CreatedAt    time.Time                   `json:"created_at"`
	Result       *model.ReconciliationResult `json:"result,omitempty"`
}

// VehicleFilter narrows ListVehicles.
type VehicleFilter struct {
	Brand string `json:"brand,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for catalog runs.
type Store interface {
	// UpsertVehicle inserts or replaces the vehicle stored under its
	// normalized brand:title key.
	UpsertVehicle(ctx context.Context, v model.Vehicle) (id string, created bool, err error)
	ListVehicles(ctx context.Context, filter VehicleFilter) ([]VehicleRecord, error)

	SaveRun(ctx context.Context, result *model.ReconciliationResult) (string, error)
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver ("postgres" or "sqlite").
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "postgres", "pgx":
		return NewPostgres(ctx, dsn, poolCfg)
	case "sqlite", "":
		return NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

const defaultListLimit = 100

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

var variantColumns = []string{
	"vehicle_id", "position", "name",
	"price", "old_price", "private_leasing", "company_leasing", "loan_price",
	"fuel_type", "transmission",
}

// variantRows flattens v's variants into rows matching variantColumns.
func variantRows(vehicleID string, v model.Vehicle) [][]any {
	rows := make([][]any, 0, len(v.Variants))
	for i, vr := range v.Variants {
		rows = append(rows, []any{
			vehicleID, i, vr.Name,
			vr.Price, vr.OldPrice, vr.PrivateLeasing, vr.CompanyLeasing, vr.LoanPrice,
			vr.FuelType, vr.Transmission,
		})
	}
	return rows
}

func vehicleKey(v model.Vehicle) (string, error) {
	key := reconcile.VehicleKey(v)
	if v.Title == "" || strings.HasSuffix(key, ":") {
		return "", eris.New("store: vehicle has no title")
	}
	return key, nil
}

func runSummary(result *model.ReconciliationResult) (RunRecord, []byte, error) {
	if result == nil {
		return RunRecord{}, nil, eris.New("store: nil result")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return RunRecord{}, nil, eris.Wrap(err, "store: marshal result")
	}
	return RunRecord{
		VehicleCount: len(result.Vehicles),
		VariantCount: result.VariantCount(),
		IssueCount:   len(result.Issues),
		TotalCost:    result.TotalCost,
	}, data, nil
}
