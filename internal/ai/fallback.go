package ai

import (
	"fmt"
	"strings"
)

// Fallback builds a deterministic summary from the static analysis
// counts alone. Used whenever the external service is unavailable or too
// slow; the same request always yields the same summary.
func Fallback(req Request) *Summary {
	total := req.SecurityIssueCount + req.PerformanceIssueCount + req.QualityIssueCount

	var assessment string
	switch {
	case req.SecurityIssueCount > 0:
		assessment = "The snippet needs attention before it is merged."
	case total > 5:
		assessment = "The snippet is functional but carries maintainability risk."
	case total > 0:
		assessment = "The snippet is in reasonable shape with minor issues."
	default:
		assessment = "The snippet looks clean."
	}

	summary := fmt.Sprintf(
		"Static analysis of this %s snippet found %d security, %d performance and %d quality issue(s), "+
			"with %.1f%% documentation coverage and an estimated %d minutes of technical debt. %s",
		strings.ToLower(req.Language),
		req.SecurityIssueCount,
		req.PerformanceIssueCount,
		req.QualityIssueCount,
		req.DocCoverage,
		req.TechDebtMinutes,
		assessment,
	)

	suggestions := []string{}
	if req.SecurityIssueCount > 0 {
		suggestions = append(suggestions,
			fmt.Sprintf("Resolve the %d potential security finding(s) first.", req.SecurityIssueCount))
	}
	if req.PerformanceIssueCount > 0 {
		suggestions = append(suggestions,
			fmt.Sprintf("Review the %d flagged performance pattern(s).", req.PerformanceIssueCount))
	}
	if req.DocCoverage < 40.0 {
		suggestions = append(suggestions, "Document the public functions and classes.")
	}
	if req.TechDebtMinutes > 60 {
		suggestions = append(suggestions,
			fmt.Sprintf("Plan roughly %d minutes to pay down the flagged debt.", req.TechDebtMinutes))
	}

	return &Summary{
		Summary:        summary,
		KeySuggestions: suggestions,
		Model:          FallbackModel,
	}
}
