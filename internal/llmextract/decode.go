package llmextract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/repair"
	"github.com/sells-group/vehicle-catalog/internal/textnorm"
)

// Hints carries document context that fills gaps in the model output.
type Hints struct {
	Source    string
	BrandHint string
	TitleHint string
}

// Decoded is the result of decoding one structured LLM response.
type Decoded struct {
	Vehicles []model.Vehicle
	Issues   []model.Issue
	Outcome  repair.Outcome
	// Cost is the USD cost of the completion that produced the payload.
	Cost float64
}

// Decode turns a raw structured response into vehicles. The payload is
// repaired if needed, keys are mapped to canonical names, and each entry
// is validated against the schema for its kind. Invalid variants and
// entries are dropped with an issue rather than failing the whole
// response. A *repair.ParseFailed is returned only when nothing usable
// could be decoded.
func Decode(raw string, hints Hints) (*Decoded, error) {
	schemas, err := loadSchemas()
	if err != nil {
		return nil, err
	}

	var payload any
	out := &Decoded{}
	outcome, err := repair.Parse(raw, &payload)
	out.Outcome = outcome
	if err != nil {
		var pf *repair.ParseFailed
		if !errors.As(err, &pf) || !pf.Partial() {
			return nil, err
		}
		out.issue(model.IssueLowConfidence, model.SeverityWarning, hints.Source, "",
			"structured output was truncated; trailing entries may be missing")
	}

	entries := envelope(normalizeKeys(payload))
	if len(entries) == 0 {
		return nil, &repair.ParseFailed{Kind: repair.NoUsableData, Reason: "no vehicle entries in payload"}
	}

	for i, m := range entries {
		kind := entryKind(m)
		if _, ok := schemas.kinds[kind]; !ok {
			out.issue(model.IssueInvalidValue, model.SeverityInfo, hints.Source, "",
				fmt.Sprintf("entry %d: unknown kind %q, treated as car", i, kind))
			kind = KindCar
		}
		m["kind"] = kind
		fillHint(m, "brand", hints.BrandHint)
		fillHint(m, "title", hints.TitleHint)

		label := stringField(m, "title")
		out.filterVariants(schemas, m, hints.Source, label)

		if err := schemas.kinds[kind].Validate(m); err != nil {
			out.issue(model.IssueParseFailed, model.SeverityWarning, hints.Source, label,
				fmt.Sprintf("entry %d does not match %s schema: %v", i, kind, err))
			continue
		}

		e, err := toEntry(m)
		if err != nil {
			out.issue(model.IssueParseFailed, model.SeverityWarning, hints.Source, label,
				fmt.Sprintf("entry %d: %v", i, err))
			continue
		}
		v := e.toVehicle(hints.Source)
		if len(v.Variants) == 0 {
			out.issue(model.IssueLowConfidence, model.SeverityInfo, hints.Source, v.Title,
				"vehicle has no variants")
		}
		out.Vehicles = append(out.Vehicles, v)
	}

	if len(out.Vehicles) == 0 {
		return out, &repair.ParseFailed{Kind: repair.NoUsableData, Reason: "no entry passed validation"}
	}
	return out, nil
}

// envelope finds the list of entries in a decoded payload. It accepts
// {"vehicles": [...]}, a bare array, or a single entry object.
func envelope(payload any) []map[string]any {
	var items []any
	switch t := payload.(type) {
	case map[string]any:
		if vs, ok := t["vehicles"].([]any); ok {
			items = vs
		} else if looksLikeEntry(t) {
			items = []any{t}
		}
	case []any:
		items = t
	}

	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func looksLikeEntry(m map[string]any) bool {
	for _, k := range []string{"kind", "title", "variants"} {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func entryKind(m map[string]any) string {
	s, _ := m["kind"].(string)
	s = strings.ReplaceAll(textnorm.Fold(strings.TrimSpace(s)), " ", "_")
	switch s {
	case "":
		return KindCar
	case "transport", "transportbil", "van":
		return KindTransportCar
	case "kampanj":
		return KindCampaign
	}
	return s
}

func fillHint(m map[string]any, key, hint string) {
	if hint == "" {
		return
	}
	if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
		return
	}
	m[key] = hint
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// filterVariants removes variants that fail the variant schema so one
// malformed trim does not reject the whole entry.
func (d *Decoded) filterVariants(schemas *schemaSet, m map[string]any, source, label string) {
	vs, ok := m["variants"].([]any)
	if !ok {
		return
	}
	kept := make([]any, 0, len(vs))
	for i, v := range vs {
		if err := schemas.variant.Validate(v); err != nil {
			d.issue(model.IssueInvalidValue, model.SeverityInfo, source, label,
				fmt.Sprintf("dropped variant %d: %v", i, err))
			continue
		}
		kept = append(kept, v)
	}
	m["variants"] = kept
}

func toEntry(m map[string]any) (entry, error) {
	var e entry
	b, err := json.Marshal(m)
	if err != nil {
		return e, eris.Wrap(err, "llmextract: marshal entry")
	}
	if err := json.Unmarshal(b, &e); err != nil {
		return e, eris.Wrap(err, "llmextract: decode entry")
	}
	return e, nil
}

func (d *Decoded) issue(kind model.IssueKind, sev model.Severity, source, vehicle, msg string) {
	d.Issues = append(d.Issues, model.Issue{
		Kind:     kind,
		Severity: sev,
		Source:   source,
		Vehicle:  vehicle,
		Message:  msg,
	})
}
