// Package correlate groups the flat entity list of a structured OCR
// engine into variant records using text positions.
package correlate

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/textnorm"
)

// Options configures Correlate.
type Options struct {
	// Source is recorded on issues.
	Source string
	// MinConfidence drops entities scored below it. Zero keeps everything.
	MinConfidence float64
}

// Result holds the correlated variants in anchor order.
type Result struct {
	Variants []model.Variant
	Issues   []model.Issue
	// LowConfidence is set when no entity carried a position and values
	// were zipped against anchors by list index.
	LowConfidence bool
}

type slot int

const (
	slotNone slot = iota
	slotPrice
	slotOldPrice
	slotPrivateLeasing
	slotOldPrivateLeasing
	slotCompanyLeasing
	slotOldCompanyLeasing
	slotLoan
	slotOldLoan
	slotFuel
	slotTransmission
	slotEquipment
)

var typeSlots = map[string]slot{
	"price":             slotPrice,
	"pris":              slotPrice,
	"oldprice":          slotOldPrice,
	"privateleasing":    slotPrivateLeasing,
	"oldprivateleasing": slotOldPrivateLeasing,
	"companyleasing":    slotCompanyLeasing,
	"oldcompanyleasing": slotOldCompanyLeasing,
	"loanprice":         slotLoan,
	"oldloanprice":      slotOldLoan,
	"fueltype":          slotFuel,
	"transmission":      slotTransmission,
	"equipment":         slotEquipment,
}

// normType lowercases and folds an entity type and removes separators, so
// "Variant_Name", "variant-name" and "variantname" are the same.
func normType(t string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ', '.':
			return -1
		}
		return r
	}, textnorm.Fold(t))
}

func isAnchor(t string) bool {
	return t == "variantname" || t == "vehiclevariant"
}

// Correlate assigns every non-anchor entity to the nearest preceding
// variant-name anchor. Fields other than equipment keep the first value
// assigned to an anchor. When no entity has a text position the entity
// lists are zipped against the anchors instead and the result is marked
// low confidence.
func Correlate(entities []model.Entity, opts Options) Result {
	c := &correlator{opts: opts}
	kept := c.filter(entities)

	positioned := false
	for _, e := range kept {
		if e.HasPosition() {
			positioned = true
			break
		}
	}
	if positioned {
		c.byPosition(kept)
	} else {
		c.byIndex(kept)
	}

	out := Result{Issues: c.issues, LowConfidence: !positioned && len(c.records) > 0}
	for _, r := range c.records {
		out.Variants = append(out.Variants, r.variant)
	}
	return out
}

type record struct {
	pos     int64
	page    int
	variant model.Variant
	set     map[slot]bool
}

type correlator struct {
	opts    Options
	records []*record
	issues  []model.Issue
}

func (c *correlator) filter(entities []model.Entity) []model.Entity {
	out := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		if c.opts.MinConfidence > 0 && e.Confidence < c.opts.MinConfidence {
			c.issue(model.IssueLowConfidence, model.SeverityInfo, "",
				fmt.Sprintf("dropped %s %q: confidence %.2f below %.2f", e.Type, e.Text, e.Confidence, c.opts.MinConfidence))
			continue
		}
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (c *correlator) byPosition(entities []model.Entity) {
	var rest []model.Entity
	for _, e := range entities {
		t := normType(e.Type)
		switch {
		case !e.HasPosition():
			c.issue(model.IssueCorrelationAmbiguous, model.SeverityInfo, "",
				fmt.Sprintf("%s %q has no text position", e.Type, e.Text))
		case isAnchor(t):
			c.records = append(c.records, &record{
				pos:     *e.TextPosition,
				page:    pageOf(e),
				variant: model.Variant{Name: textnorm.CleanText(e.Text)},
				set:     map[slot]bool{},
			})
		default:
			rest = append(rest, e)
		}
	}

	sort.SliceStable(c.records, func(i, j int) bool {
		a, b := c.records[i], c.records[j]
		if a.pos != b.pos {
			return a.pos < b.pos
		}
		return a.page < b.page
	})

	for _, e := range rest {
		owner := c.owner(*e.TextPosition, pageOf(e))
		if owner == nil {
			c.issue(model.IssueCorrelationAmbiguous, model.SeverityWarning, "",
				fmt.Sprintf("%s %q precedes every variant name", e.Type, e.Text))
			continue
		}
		c.assign(owner, e)
	}
}

// owner returns the last anchor at or before pos.
func (c *correlator) owner(pos int64, page int) *record {
	i := sort.Search(len(c.records), func(i int) bool {
		r := c.records[i]
		return r.pos > pos || (r.pos == pos && r.page > page)
	})
	if i == 0 {
		return nil
	}
	return c.records[i-1]
}

func (c *correlator) byIndex(entities []model.Entity) {
	lists := make(map[string][]model.Entity)
	var order []string
	for _, e := range entities {
		t := normType(e.Type)
		if isAnchor(t) {
			c.records = append(c.records, &record{
				variant: model.Variant{Name: textnorm.CleanText(e.Text)},
				set:     map[slot]bool{},
			})
			continue
		}
		if _, ok := lists[t]; !ok {
			order = append(order, t)
		}
		lists[t] = append(lists[t], e)
	}

	for _, t := range order {
		for i, e := range lists[t] {
			if i >= len(c.records) {
				c.issue(model.IssueCorrelationAmbiguous, model.SeverityWarning, "",
					fmt.Sprintf("%s %q has no matching variant name", e.Type, e.Text))
				continue
			}
			c.assign(c.records[i], e)
		}
	}
	if len(c.records) > 0 {
		c.issue(model.IssueLowConfidence, model.SeverityWarning, "",
			"entities carry no positions; fields were matched to variants by order")
	}
}

func (c *correlator) assign(r *record, e model.Entity) {
	s, ok := typeSlots[normType(e.Type)]
	if !ok {
		zap.L().Debug("correlate: ignoring entity type", zap.String("type", e.Type))
		return
	}
	v := &r.variant

	switch s {
	case slotEquipment:
		item := textnorm.CleanText(e.Text)
		for _, have := range v.Equipment {
			if textnorm.Fold(have) == textnorm.Fold(item) {
				return
			}
		}
		v.Equipment = append(v.Equipment, item)
		return
	case slotFuel, slotTransmission:
		if r.set[s] {
			return
		}
		r.set[s] = true
		if s == slotFuel {
			v.FuelType = textnorm.NormalizeFuel(e.Text)
		} else {
			v.Transmission = textnorm.NormalizeTransmission(e.Text)
		}
		return
	}

	if r.set[s] {
		return
	}
	n, ok := textnorm.ParsePrice(e.Text)
	if !ok {
		c.issue(model.IssueInvalidValue, model.SeverityInfo, v.Name,
			fmt.Sprintf("unparseable %s %q", e.Type, e.Text))
		return
	}
	r.set[s] = true
	*priceSlot(v, s) = model.Int64(n)
}

func priceSlot(v *model.Variant, s slot) **int64 {
	switch s {
	case slotOldPrice:
		return &v.OldPrice
	case slotPrivateLeasing:
		return &v.PrivateLeasing
	case slotOldPrivateLeasing:
		return &v.OldPrivateLeasing
	case slotCompanyLeasing:
		return &v.CompanyLeasing
	case slotOldCompanyLeasing:
		return &v.OldCompanyLeasing
	case slotLoan:
		return &v.LoanPrice
	case slotOldLoan:
		return &v.OldLoanPrice
	}
	return &v.Price
}

func pageOf(e model.Entity) int {
	if e.PageIndex == nil {
		return 0
	}
	return *e.PageIndex
}

func (c *correlator) issue(kind model.IssueKind, sev model.Severity, vehicle, msg string) {
	c.issues = append(c.issues, model.Issue{
		Kind:     kind,
		Severity: sev,
		Source:   c.opts.Source,
		Vehicle:  vehicle,
		Message:  msg,
	})
}
