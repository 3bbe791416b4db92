// Package reconcile deduplicates variants and vehicles extracted from
// different documents and merges them into one catalog.
package reconcile

import (
	"sync"

	"github.com/sells-group/vehicle-catalog/internal/model"
)

// DefaultThreshold is the similarity at or above which two variants merge.
const DefaultThreshold = 0.8

// Reconciler scores and merges variants and vehicles using a vocabulary.
type Reconciler struct {
	noise      wordSet
	titleNoise wordSet
	stop       wordSet
	trims      wordSet
	engines    wordSet
	manual     wordSet
	automatic  wordSet
}

// New creates a Reconciler from v.
func New(v *Vocabulary) *Reconciler {
	return &Reconciler{
		noise:      newWordSet(v.NoiseWords),
		titleNoise: newWordSet(v.TitleNoise),
		stop:       newWordSet(v.StopWords),
		trims:      newWordSet(v.Trims),
		engines:    newWordSet(v.Engines),
		manual:     newWordSet(v.Manual),
		automatic:  newWordSet(v.Automatic),
	}
}

var defaultReconciler = sync.OnceValue(func() *Reconciler {
	v, err := builtinVocabulary()
	if err != nil {
		panic(err)
	}
	return New(v)
})

// Default returns the Reconciler built from the embedded vocabulary.
func Default() *Reconciler { return defaultReconciler() }

// VariantSimilarity scores a and b with the default vocabulary.
func VariantSimilarity(a, b model.Variant) float64 {
	return Default().VariantSimilarity(a, b)
}

// MergeVariants merges b into a with the default vocabulary.
func MergeVariants(a, b model.Variant) model.Variant {
	return Default().MergeVariants(a, b)
}

// GroupVariants deduplicates vs with the default vocabulary.
func GroupVariants(vs []model.Variant, threshold float64) []model.Variant {
	return Default().GroupVariants(vs, threshold)
}

// VehicleKey returns the normalized brand:title key of v.
func VehicleKey(v model.Vehicle) string {
	return Default().VehicleKey(v)
}

// SameVehicle reports whether a and b denote the same model.
func SameVehicle(a, b model.Vehicle) bool {
	return Default().SameVehicle(a, b)
}

// MergeVehicles merges b into a with the default vocabulary.
func MergeVehicles(a, b model.Vehicle, threshold float64) model.Vehicle {
	return Default().MergeVehicles(a, b, threshold)
}

// Vehicles reconciles candidates with the default vocabulary.
func Vehicles(candidates []model.Vehicle, threshold float64) []model.Vehicle {
	return Default().Vehicles(candidates, threshold)
}
