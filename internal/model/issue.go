package model

// IssueKind classifies a data-quality or provider problem found during a run.
type IssueKind string

const (
	IssueProviderUnavailable  IssueKind = "provider_unavailable"
	IssueRateLimited          IssueKind = "rate_limited"
	IssueTimeout              IssueKind = "timeout"
	IssueCircuitOpen          IssueKind = "circuit_open"
	IssueExtractionDegraded   IssueKind = "extraction_degraded"
	IssueExtractionFailed     IssueKind = "extraction_failed"
	IssueEmptyOutput          IssueKind = "empty_output"
	IssueParseFailed          IssueKind = "parse_failed"
	IssueCorrelationAmbiguous IssueKind = "correlation_ambiguous"
	IssueLowConfidence        IssueKind = "low_confidence"
	IssueInvalidValue         IssueKind = "invalid_value"
)

// Severity is how much an issue affects the result.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is a structured, user-visible record of something that went wrong
// without aborting the run.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Severity Severity  `json:"severity"`
	Source   string    `json:"source,omitempty"`
	Vehicle  string    `json:"vehicle,omitempty"`
	Message  string    `json:"message"`
}

// ReconciliationResult is the externally visible output of one run.
type ReconciliationResult struct {
	Vehicles  []Vehicle           `json:"vehicles"`
	Issues    []Issue             `json:"issues"`
	Attempts  []ExtractionAttempt `json:"attempts,omitempty"`
	TotalCost float64             `json:"total_cost"`
}

// VariantCount returns the number of variants across all vehicles.
func (r *ReconciliationResult) VariantCount() int {
	n := 0
	for _, v := range r.Vehicles {
		n += len(v.Variants)
	}
	return n
}
