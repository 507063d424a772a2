package validation

// Severity distinguishes hard schema violations from soft warnings
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding of the output validator. Rule names the check
// that fired, Path points into the result structure.
type Issue struct {
	Rule          string   `json:"rule"`
	Path          string   `json:"path,omitempty"`
	Message       string   `json:"message"`
	Severity      Severity `json:"severity"`
	Hallucination bool     `json:"hallucination,omitempty"`
}

// Result classifies a completion result. Validation never mutates the
// result; a schema violation zeroes confidence, each warning deducts a
// fixed penalty floored at 0.1.
type Result struct {
	Valid      bool    `json:"valid"`
	Confidence float64 `json:"confidence"`
	Issues     []Issue `json:"issues,omitempty"`
}

// Errors returns the hard violations
func (r *Result) Errors() []Issue {
	return r.filter(SeverityError)
}

// Warnings returns the soft findings
func (r *Result) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

// HallucinationCount counts issues flagged as hallucinated properties
func (r *Result) HallucinationCount() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Hallucination {
			n++
		}
	}
	return n
}

func (r *Result) filter(severity Severity) []Issue {
	var issues []Issue
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			issues = append(issues, issue)
		}
	}
	return issues
}
