package pipeline

import (
	"context"
	"strings"

	"github.com/sells-group/vehicle-catalog/internal/correlate"
	"github.com/sells-group/vehicle-catalog/internal/extract"
	"github.com/sells-group/vehicle-catalog/internal/heuristic"
	"github.com/sells-group/vehicle-catalog/internal/llmextract"
	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/textnorm"
)

// titleTypes are entity types that name the vehicle model itself.
var titleTypes = map[string]bool{
	"model":        true,
	"modell":       true,
	"vehicle":      true,
	"vehiclename":  true,
	"vehicletitle": true,
	"title":        true,
}

// brandTypes are entity types that name the make.
var brandTypes = map[string]bool{
	"brand": true,
	"make":  true,
	"marke": true,
}

// vehiclesFrom turns a tier output into candidate vehicles. Finished
// vehicles are used as is, structured replies are decoded, entities are
// correlated and plain text goes to the text extractor or local parser.
func (p *Pipeline) vehiclesFrom(ctx context.Context, doc model.RawDocument, res *extract.Result, out *docResult) {
	o := res.Output
	hints := llmextract.Hints{Source: doc.SourceURL, BrandHint: doc.BrandHint, TitleHint: doc.TitleHint}

	switch {
	case len(o.Vehicles) > 0:
		out.vehicles = append(out.vehicles, o.Vehicles...)

	case strings.TrimSpace(o.Structured) != "":
		// The completion cost is already on the attempt.
		dec, err := llmextract.DecodeCompletion(&llmextract.Completion{Text: o.Structured, Truncated: o.Truncated}, hints)
		out.absorb(dec)
		if err != nil {
			out.issue(model.IssueParseFailed, model.SeverityError, doc.SourceURL, "", err.Error())
		}

	case len(o.Entities) > 0:
		if v, ok := p.fromEntities(doc, o.Entities, out); ok {
			out.vehicles = append(out.vehicles, v)
			return
		}
		if strings.TrimSpace(o.Text) != "" {
			p.fromText(ctx, doc, o.Text, hints, out)
		}

	default:
		p.fromText(ctx, doc, o.Text, hints, out)
	}
}

// fromEntities correlates OCR entities into one vehicle. Brand and model
// entities name the vehicle and are kept out of correlation. It fails when
// no variant could be built or no title is known.
func (p *Pipeline) fromEntities(doc model.RawDocument, entities []model.Entity, out *docResult) (model.Vehicle, bool) {
	var meta, fields []model.Entity
	for _, e := range entities {
		t := entityType(e)
		if titleTypes[t] || brandTypes[t] {
			meta = append(meta, e)
		} else {
			fields = append(fields, e)
		}
	}

	cr := correlate.Correlate(fields, correlate.Options{
		Source:        doc.SourceURL,
		MinConfidence: p.opts.MinEntityConfidence,
	})
	v := model.Vehicle{
		Brand:     firstNonEmpty(bestEntity(meta, brandTypes), doc.BrandHint),
		Title:     firstNonEmpty(bestEntity(meta, titleTypes), doc.TitleHint),
		SourceURL: doc.SourceURL,
		Variants:  cr.Variants,
	}
	for _, is := range cr.Issues {
		if is.Vehicle == "" {
			is.Vehicle = v.Title
		}
		out.issues = append(out.issues, is)
	}
	if len(cr.Variants) == 0 {
		return model.Vehicle{}, false
	}
	if v.Title == "" {
		out.issue(model.IssueParseFailed, model.SeverityWarning, doc.SourceURL, "",
			"entities carry variants but no vehicle title")
		return model.Vehicle{}, false
	}
	return v, true
}

func (p *Pipeline) fromText(ctx context.Context, doc model.RawDocument, text string, hints llmextract.Hints, out *docResult) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if p.text != nil {
		dec, err := p.text.FromText(ctx, text, hints)
		if err == nil {
			out.absorb(dec)
			return
		}
		if dec != nil {
			out.cost += dec.Cost
		}
		out.issue(model.IssueParseFailed, model.SeverityWarning, doc.SourceURL, "",
			"text extraction failed, using local parser: "+err.Error())
	}

	vs := heuristic.Parse(text, heuristic.Hints{Brand: doc.BrandHint, Title: doc.TitleHint, Source: doc.SourceURL})
	if len(vs) == 0 {
		out.issue(model.IssueParseFailed, model.SeverityWarning, doc.SourceURL, "", "no vehicles found in text")
	}
	out.vehicles = append(out.vehicles, vs...)
}

func (r *docResult) absorb(dec *llmextract.Decoded) {
	if dec == nil {
		return
	}
	r.vehicles = append(r.vehicles, dec.Vehicles...)
	r.issues = append(r.issues, dec.Issues...)
	r.cost += dec.Cost
}

// bestEntity returns the text of the highest-confidence entity whose
// folded type is in types.
func bestEntity(entities []model.Entity, types map[string]bool) string {
	best, conf := "", -1.0
	for _, e := range entities {
		if !types[entityType(e)] {
			continue
		}
		text := strings.TrimSpace(e.Text)
		if text != "" && e.Confidence > conf {
			best, conf = text, e.Confidence
		}
	}
	return best
}

// entityType folds an entity type and drops separators.
func entityType(e model.Entity) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ', '.':
			return -1
		}
		return r
	}, textnorm.Fold(e.Type))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
