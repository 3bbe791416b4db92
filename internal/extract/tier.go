// Package extract runs a document through an ordered chain of extraction
// tiers and returns the first usable output.
package extract

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-catalog/internal/model"
)

// ErrProviderUnavailable is returned by a tier that has no credentials or
// cannot reach its provider at all. It is fatal for that tier only.
var ErrProviderUnavailable = eris.New("extract: provider unavailable")

// Tier is one extraction strategy.
type Tier interface {
	Name() string
	Supports(kind model.DocumentKind) bool
	Extract(ctx context.Context, doc model.RawDocument) (*Output, error)
}

// Output is what a tier produced. Exactly which fields are set depends on
// the tier: OCR yields Text and possibly Entities, LLM tiers yield
// Structured JSON and the local parser yields Vehicles.
type Output struct {
	Text       string
	Structured string
	Entities   []model.Entity
	Vehicles   []model.Vehicle
	Pages      int
	Cost       float64
	// Truncated is set when the provider stopped at its output limit.
	Truncated bool
}

// Empty reports whether the output carries nothing usable.
func (o *Output) Empty() bool {
	if o == nil {
		return true
	}
	return strings.TrimSpace(o.Text) == "" &&
		strings.TrimSpace(o.Structured) == "" &&
		len(o.Entities) == 0 &&
		len(o.Vehicles) == 0
}
