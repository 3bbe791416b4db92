package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/resilience"
)

// errEmptyOutput marks an attempt that returned without error but with
// nothing usable.
var errEmptyOutput = eris.New("extract: empty output")

// ExtractionFailed is returned when every tier failed for a document.
type ExtractionFailed struct {
	Source   string
	Attempts []model.ExtractionAttempt
}

func (e *ExtractionFailed) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Provider, a.Error))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("extract: no tier supports %s", e.Source)
	}
	return fmt.Sprintf("extract: all tiers failed for %s (%s)", e.Source, strings.Join(parts, "; "))
}

// Result is the outcome of a successful selection.
type Result struct {
	Tier     string
	Output   *Output
	Attempts []model.ExtractionAttempt
	// Degraded is set when a higher tier was rate limited and a lower tier
	// produced the output.
	Degraded bool
}

// Options configures a Selector.
type Options struct {
	// Policy is the retry policy for every tier call.
	Policy resilience.Policy
	// Timeout bounds a single tier call. Default: 2m.
	Timeout time.Duration
	// Timeouts overrides Timeout per tier name.
	Timeouts map[string]time.Duration
	// PageCost is the estimated USD cost per page for tiers that do not
	// report a token-based cost.
	PageCost map[string]float64
	// Breakers skips tiers that keep failing across documents. Optional.
	Breakers *resilience.Breakers
}

// Selector tries tiers in priority order.
type Selector struct {
	tiers []Tier
	opts  Options
	now   func() time.Time
}

// NewSelector creates a Selector. Tiers are tried in the order given.
func NewSelector(tiers []Tier, opts Options) *Selector {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	return &Selector{tiers: tiers, opts: opts, now: time.Now}
}

// Tiers returns the tier names in priority order.
func (s *Selector) Tiers() []string {
	names := make([]string, len(s.tiers))
	for i, t := range s.tiers {
		names[i] = t.Name()
	}
	return names
}

// Extract runs doc through the tiers until one returns non-empty output.
// Each failed tier is recorded as an attempt. If every tier fails the
// error is an *ExtractionFailed carrying all attempts.
func (s *Selector) Extract(ctx context.Context, doc model.RawDocument) (*Result, error) {
	var (
		attempts    []model.ExtractionAttempt
		rateLimited bool
	)

	for _, tier := range s.tiers {
		if !tier.Supports(doc.Kind) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := tier.Name()
		var cb *resilience.CircuitBreaker
		if s.opts.Breakers != nil {
			cb = s.opts.Breakers.Get(name)
			if !cb.Allow() {
				attempts = append(attempts, model.ExtractionAttempt{
					Provider:  name,
					Document:  doc.SourceURL,
					StartedAt: s.now(),
					Error:     resilience.ErrCircuitOpen.Error(),
					ErrorKind: model.IssueCircuitOpen,
				})
				continue
			}
		}

		attempt, out := s.try(ctx, tier, doc)
		if cb != nil {
			cb.Record(attemptErr(attempt))
		}
		attempts = append(attempts, attempt)

		if attempt.Succeeded {
			return &Result{
				Tier:     name,
				Output:   out,
				Attempts: attempts,
				Degraded: rateLimited,
			}, nil
		}

		if attempt.ErrorKind == model.IssueRateLimited {
			rateLimited = true
		}
		zap.L().Debug("extract: tier failed, trying next",
			zap.String("tier", name),
			zap.String("document", doc.SourceURL),
			zap.String("kind", string(attempt.ErrorKind)),
			zap.String("error", attempt.Error),
		)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, &ExtractionFailed{Source: doc.SourceURL, Attempts: attempts}
}

func (s *Selector) try(ctx context.Context, tier Tier, doc model.RawDocument) (model.ExtractionAttempt, *Output) {
	name := tier.Name()
	timeout := s.opts.Timeout
	if d, ok := s.opts.Timeouts[name]; ok && d > 0 {
		timeout = d
	}

	policy := s.opts.Policy
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.RetryLogger(name, "extract")
	}

	start := s.now()
	out, err := resilience.DoVal(ctx, policy, func(ctx context.Context) (*Output, error) {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return tier.Extract(cctx, doc)
	})
	if err == nil && out.Empty() {
		err = errEmptyOutput
	}

	attempt := model.ExtractionAttempt{
		Provider:  name,
		Document:  doc.SourceURL,
		StartedAt: start,
		Duration:  s.now().Sub(start),
		Succeeded: err == nil,
	}
	if out != nil {
		attempt.Pages = out.Pages
		attempt.CostEstimate = s.cost(name, out)
		attempt.RawOutput = rawOutput(out)
	}
	if err != nil {
		attempt.Error = err.Error()
		attempt.ErrorKind = ErrorKind(err)
		return attempt, nil
	}
	return attempt, out
}

func (s *Selector) cost(tier string, out *Output) float64 {
	if out.Cost > 0 {
		return out.Cost
	}
	return float64(out.Pages) * s.opts.PageCost[tier]
}

// ErrorKind maps a tier error to the issue kind recorded on the attempt.
func ErrorKind(err error) model.IssueKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errEmptyOutput):
		return model.IssueEmptyOutput
	case errors.Is(err, ErrProviderUnavailable):
		return model.IssueProviderUnavailable
	case errors.Is(err, resilience.ErrCircuitOpen):
		return model.IssueCircuitOpen
	}
	switch resilience.DefaultClassify(err).Class {
	case resilience.ClassRateLimited:
		return model.IssueRateLimited
	case resilience.ClassTimeout:
		return model.IssueTimeout
	}
	return model.IssueExtractionFailed
}

// attemptErr turns a failed attempt back into an error for the circuit
// breaker, which only counts rate limits and timeouts.
func attemptErr(a model.ExtractionAttempt) error {
	switch a.ErrorKind {
	case model.IssueRateLimited:
		return resilience.NewStatusError(errors.New(a.Error), 429)
	case model.IssueTimeout:
		return context.DeadlineExceeded
	case "":
		return nil
	default:
		return errors.New(a.Error)
	}
}

const maxRawOutput = 4096

func rawOutput(out *Output) string {
	s := out.Structured
	if s == "" {
		s = out.Text
	}
	if len(s) > maxRawOutput {
		return strings.ToValidUTF8(s[:maxRawOutput], "")
	}
	return s
}
