package llmextract

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/resilience"
)

// Extractor turns plain document text into vehicles by prompting a model
// for the extraction IR and decoding its reply.
type Extractor struct {
	completer Completer
	policy    resilience.Policy
}

// NewExtractor creates an Extractor. Calls are retried with policy.
func NewExtractor(c Completer, policy resilience.Policy) *Extractor {
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.RetryLogger(c.Name(), "llmextract")
	}
	return &Extractor{completer: c, policy: policy}
}

// FromText extracts vehicles from text. A decode failure is returned as a
// *repair.ParseFailed together with the completion cost in the partial
// result.
func (e *Extractor) FromText(ctx context.Context, text string, hints Hints) (*Decoded, error) {
	if strings.TrimSpace(text) == "" {
		return nil, eris.New("llmextract: empty text")
	}

	comp, err := resilience.DoVal(ctx, e.policy, func(ctx context.Context) (*Completion, error) {
		return e.completer.Complete(ctx, Request{
			System: SystemPrompt(),
			Prompt: UserPrompt(hints, text),
			Source: hints.Source,
		})
	})
	if err != nil {
		return nil, err
	}

	return DecodeCompletion(comp, hints)
}

// DecodeCompletion decodes a completion and flags a truncated reply.
func DecodeCompletion(comp *Completion, hints Hints) (*Decoded, error) {
	dec, err := Decode(comp.Text, hints)
	if dec == nil {
		dec = &Decoded{}
	}
	dec.Cost = comp.Cost
	if comp.Truncated && !dec.hasIssue(model.IssueLowConfidence) {
		dec.issue(model.IssueLowConfidence, model.SeverityWarning, hints.Source, "",
			"model stopped at its output limit")
	}
	return dec, err
}

func (d *Decoded) hasIssue(kind model.IssueKind) bool {
	for _, is := range d.Issues {
		if is.Kind == kind && is.Vehicle == "" {
			return true
		}
	}
	return false
}
