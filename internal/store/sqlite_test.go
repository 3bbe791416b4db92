package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vehicle-catalog/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func ceed(prices ...int64) model.Vehicle {
	v := model.Vehicle{Brand: "Kia", Title: "Ceed", BodyType: "halvkombi", SourceURL: "https://kia.se/ceed"}
	names := []string{"Action", "GT-Line", "Advance"}
	for i, p := range prices {
		v.Variants = append(v.Variants, model.Variant{Name: names[i%len(names)], Price: model.Int64(p), FuelType: "Bensin"})
	}
	return v
}

func TestSQLite_UpsertVehicle_CreateThenUpdate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id, created, err := st.UpsertVehicle(ctx, ceed(269900, 309900))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)

	updated := ceed(259900)
	updated.Title = "CEED"
	id2, created, err := st.UpsertVehicle(ctx, updated)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, id2)

	recs, err := st.ListVehicles(ctx, VehicleFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "CEED", recs[0].Vehicle.Title)
	require.Len(t, recs[0].Vehicle.Variants, 1)
	assert.Equal(t, int64(259900), *recs[0].Vehicle.Variants[0].Price)

	var n int
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT count(*) FROM vehicle_variants WHERE vehicle_id = ?`, id).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLite_UpsertVehicle_NoTitle(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, _, err := st.UpsertVehicle(context.Background(), model.Vehicle{Brand: "Kia"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no title")
}

func TestSQLite_ListVehicles_BrandFilter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, _, err := st.UpsertVehicle(ctx, ceed(269900))
	require.NoError(t, err)
	_, _, err = st.UpsertVehicle(ctx, model.Vehicle{Brand: "Volvo", Title: "EX30", Variants: []model.Variant{{Name: "Core"}}})
	require.NoError(t, err)

	all, err := st.ListVehicles(ctx, VehicleFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	volvo, err := st.ListVehicles(ctx, VehicleFilter{Brand: "volvo"})
	require.NoError(t, err)
	require.Len(t, volvo, 1)
	assert.Equal(t, "EX30", volvo[0].Vehicle.Title)

	one, err := st.ListVehicles(ctx, VehicleFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestSQLite_Runs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	result := &model.ReconciliationResult{
		Vehicles: []model.Vehicle{ceed(269900, 309900)},
		Issues: []model.Issue{{
			Kind:     model.IssueExtractionDegraded,
			Severity: model.SeverityWarning,
			Message:  "claude tier failed, used heuristic",
		}},
		TotalCost: 0.42,
	}
	id, err := st.SaveRun(ctx, result)
	require.NoError(t, err)

	got, err := st.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.VehicleCount)
	assert.Equal(t, 2, got.VariantCount)
	assert.Equal(t, 1, got.IssueCount)
	assert.InDelta(t, 0.42, got.TotalCost, 1e-9)
	require.NotNil(t, got.Result)
	assert.Equal(t, model.IssueExtractionDegraded, got.Result.Issues[0].Kind)

	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Nil(t, runs[0].Result)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetRun(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_SaveRun_Nil(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.SaveRun(context.Background(), nil)
	require.Error(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "c.db"), nil)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
}
