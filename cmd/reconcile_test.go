//go:build !integration

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/reconcile"
)

func writeJSONFile(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestReadResult_ObjectAndArray(t *testing.T) {
	obj := writeJSONFile(t, ceedResult())
	res, err := readResult(obj)
	require.NoError(t, err)
	assert.Len(t, res.Vehicles, 1)
	assert.Len(t, res.Issues, 1)

	arr := writeJSONFile(t, ceedResult().Vehicles)
	res, err = readResult(arr)
	require.NoError(t, err)
	assert.Len(t, res.Vehicles, 1)
	assert.Empty(t, res.Issues)
}

func TestReadResult_Errors(t *testing.T) {
	_, err := readResult(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("[{"), 0o644))
	_, err = readResult(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconcile: decode")
}

func TestReconcileResult_MergesAcrossInputs(t *testing.T) {
	in := &model.ReconciliationResult{
		Vehicles: []model.Vehicle{
			{Brand: "Kia", Title: "Ceed", Variants: []model.Variant{{Name: "Action", Price: model.Int64(269900)}}},
			{Brand: "Kia", Title: "CEED", Variants: []model.Variant{{Name: "Action", PrivateLeasing: model.Int64(2999)}}},
		},
		TotalCost: 0.4,
	}

	out := reconcileResult(reconcile.Default(), in, reconcile.DefaultThreshold)
	require.Len(t, out.Vehicles, 1)
	require.Len(t, out.Vehicles[0].Variants, 1)
	assert.Equal(t, int64(269900), *out.Vehicles[0].Variants[0].Price)
	assert.Equal(t, int64(2999), *out.Vehicles[0].Variants[0].PrivateLeasing)
	assert.InDelta(t, 0.4, out.TotalCost, 1e-9)
	assert.NotNil(t, out.Issues)
	assert.Len(t, in.Vehicles, 2)
}

func TestReconcileCmd_Flags(t *testing.T) {
	f := reconcileCmd.Flags().Lookup("threshold")
	require.NotNil(t, f)
	assert.Equal(t, "0", f.DefValue)
}
