package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vehicle-catalog/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS vehicles`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertVehicle_Created(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO vehicles .* ON CONFLICT \(key\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "kia:ceed", "Kia", "Ceed", "halvkombi", "https://kia.se/ceed", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created"}).AddRow("veh-1", true))
	mock.ExpectExec(`DELETE FROM vehicle_variants`).
		WithArgs("veh-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"vehicle_variants"}, variantColumns).WillReturnResult(2)
	mock.ExpectCommit()

	id, created, err := s.UpsertVehicle(context.Background(), ceed(269900, 309900))
	require.NoError(t, err)
	assert.Equal(t, "veh-1", id)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertVehicle_Updated(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO vehicles`).
		WithArgs(pgxmock.AnyArg(), "kia:ceed", "Kia", "Ceed", "halvkombi", "https://kia.se/ceed", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created"}).AddRow("veh-1", false))
	mock.ExpectExec(`DELETE FROM vehicle_variants`).
		WithArgs("veh-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCopyFrom(pgx.Identifier{"vehicle_variants"}, variantColumns).WillReturnResult(1)
	mock.ExpectCommit()

	_, created, err := s.UpsertVehicle(context.Background(), ceed(259900))
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertVehicle_CopyFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO vehicles`).
		WithArgs(pgxmock.AnyArg(), "kia:ceed", "Kia", "Ceed", "halvkombi", "https://kia.se/ceed", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created"}).AddRow("veh-1", true))
	mock.ExpectExec(`DELETE FROM vehicle_variants`).
		WithArgs("veh-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"vehicle_variants"}, variantColumns).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, _, err := s.UpsertVehicle(context.Background(), ceed(269900))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy variants")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertVehicle_BeginFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	_, _, err := s.UpsertVehicle(context.Background(), ceed(269900))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin upsert")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListVehicles(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	data, err := json.Marshal(ceed(269900))
	require.NoError(t, err)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, key, data, created_at, updated_at FROM vehicles WHERE lower\(brand\)`).
		WithArgs(defaultListLimit, "Kia").
		WillReturnRows(pgxmock.NewRows([]string{"id", "key", "data", "created_at", "updated_at"}).
			AddRow("veh-1", "kia:ceed", data, now, now))

	recs, err := s.ListVehicles(context.Background(), VehicleFilter{Brand: "Kia"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "kia:ceed", recs[0].Key)
	assert.Equal(t, "Ceed", recs[0].Vehicle.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), 1, 2, 0, 0.1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.SaveRun(context.Background(), &model.ReconciliationResult{
		Vehicles:  []model.Vehicle{ceed(269900, 309900)},
		TotalCost: 0.1,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, vehicle_count, variant_count, issue_count, total_cost, result, created_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	data, err := json.Marshal(model.ReconciliationResult{Vehicles: []model.Vehicle{ceed(269900)}, TotalCost: 0.2})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, vehicle_count`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "vehicle_count", "variant_count", "issue_count", "total_cost", "result", "created_at"}).
			AddRow("run-1", 1, 1, 0, 0.2, data, time.Now()))

	rec, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, rec.Result)
	assert.Len(t, rec.Result.Vehicles, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, vehicle_count`).
		WithArgs(5).
		WillReturnError(errors.New("connection reset"))

	_, err := s.ListRuns(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list runs")
	assert.NoError(t, mock.ExpectationsWereMet())
}
