package repair

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// FailureKind distinguishes an unusable payload from a partially
// recovered one.
type FailureKind string

const (
	// NoUsableData means nothing could be decoded.
	NoUsableData FailureKind = "no_usable_data"
	// LowConfidence means data was decoded from a truncated payload. The
	// target value is populated but some trailing elements were dropped.
	LowConfidence FailureKind = "low_confidence"
)

// ParseFailed is returned by Parse when the payload could not be decoded
// cleanly.
type ParseFailed struct {
	Kind   FailureKind
	Reason string
	Err    error
}

func (e *ParseFailed) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("repair: %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("repair: %s: %s", e.Kind, e.Reason)
}

func (e *ParseFailed) Unwrap() error { return e.Err }

// Partial reports whether the target value holds usable data.
func (e *ParseFailed) Partial() bool { return e.Kind == LowConfidence }

// Outcome describes how a payload was decoded.
type Outcome struct {
	// Repaired is set when the plain decode failed and Repair was needed.
	Repaired bool
	// Truncated is set when Repair had to drop trailing content.
	Truncated bool
}

// Parse decodes an LLM response into v. Code fences and surrounding prose
// are stripped, then a plain decode is attempted; Repair is only used when
// that fails. A repaired payload that lost trailing content still
// populates v and returns a *ParseFailed of kind LowConfidence.
func Parse(text string, v any) (Outcome, error) {
	payload := ExtractPayload(text)
	if payload == "" {
		return Outcome{}, &ParseFailed{Kind: NoUsableData, Reason: "no JSON payload in response"}
	}

	plainErr := json.Unmarshal([]byte(payload), v)
	if plainErr == nil {
		return Outcome{}, nil
	}
	if json.Valid([]byte(payload)) {
		return Outcome{}, &ParseFailed{Kind: NoUsableData, Reason: "payload does not match target", Err: plainErr}
	}

	fixed, kept, ok := repairPayload(payload)
	if !ok {
		return Outcome{}, &ParseFailed{Kind: NoUsableData, Reason: "unrepairable payload", Err: plainErr}
	}
	out := Outcome{Repaired: true, Truncated: kept < len(trimTail(payload))}
	if isEmpty(fixed) {
		return out, &ParseFailed{Kind: NoUsableData, Reason: "payload empty after repair"}
	}
	if err := json.Unmarshal([]byte(fixed), v); err != nil {
		return out, &ParseFailed{Kind: NoUsableData, Reason: "repaired payload does not decode", Err: eris.Wrap(err, "repair: unmarshal")}
	}
	if out.Truncated {
		return out, &ParseFailed{Kind: LowConfidence, Reason: "payload was truncated"}
	}
	return out, nil
}

// ExtractPayload strips markdown code fences and prose around the first
// JSON object or array in text.
func ExtractPayload(text string) string {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		} else {
			rest = strings.TrimLeft(rest, "abcdefghijklmnopqrstuvwxyz")
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	s = s[start:]
	if json.Valid([]byte(s)) {
		return s
	}
	if end := strings.LastIndexAny(s, "}]"); end >= 0 && json.Valid([]byte(s[:end+1])) {
		return s[:end+1]
	}
	return s
}

// isEmpty reports whether payload decodes to containers with no scalar
// anywhere inside them, such as {} or [{}].
func isEmpty(payload string) bool {
	var probe any
	if err := json.Unmarshal([]byte(payload), &probe); err != nil {
		return false
	}
	return !hasScalar(probe)
}

func hasScalar(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		for _, x := range t {
			if hasScalar(x) {
				return true
			}
		}
		return false
	case []any:
		for _, x := range t {
			if hasScalar(x) {
				return true
			}
		}
		return false
	case nil:
		return false
	}
	return true
}
