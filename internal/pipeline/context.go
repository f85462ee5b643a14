package pipeline

import (
	"github.com/reviewhub/reviewhub/internal/ai"
	"github.com/reviewhub/reviewhub/internal/store/model"
)

// Keys of the persisted results bundle. Fixed by the client contract.
const (
	KeyAISummary         = "ai_summary"
	KeySecurityReport    = "security_report"
	KeyPerformanceReport = "performance_report"
	KeyQualityReport     = "quality_report"
	KeyCodeMetrics       = "code_metrics"
)

type Finding struct {
	Line        int    `json:"line,omitempty"`
	Lines       []int  `json:"lines,omitempty"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Snippet     string `json:"snippet,omitempty"`
}

type CodeMetrics struct {
	Loc                  int    `json:"loc"`
	CyclomaticComplexity int    `json:"cyclomatic_complexity"`
	NormalizedHash       string `json:"normalized_hash"`
	DetectedLanguage     string `json:"detected_language"`
}

type SecurityReport struct {
	IsSecure           bool      `json:"is_secure"`
	VulnerabilityCount int       `json:"vulnerability_count"`
	Findings           []Finding `json:"findings"`
}

type PerformanceReport struct {
	IssueCount int       `json:"issue_count"`
	Findings   []Finding `json:"findings"`
}

type Documentation struct {
	Coverage float64 `json:"coverage"`
	Rating   string  `json:"rating"`
}

type QualityReport struct {
	IssueCount           int           `json:"issue_count"`
	Documentation        Documentation `json:"documentation"`
	TechnicalDebtMinutes int           `json:"technical_debt_minutes"`
	Findings             []Finding     `json:"findings"`
}

// Context accumulates each stage's report for one review. Later stages
// read earlier reports read-only; only the orchestrator writes durable
// state.
type Context struct {
	Snippet *model.CodeSnippet

	Metrics     *CodeMetrics
	Security    *SecurityReport
	Performance *PerformanceReport
	Quality     *QualityReport
	Summary     *ai.Summary
}

// Bundle collects the accumulated reports under their persisted keys.
func (c *Context) Bundle() model.JSONMap {
	return model.JSONMap{
		KeyAISummary:         c.Summary,
		KeySecurityReport:    c.Security,
		KeyPerformanceReport: c.Performance,
		KeyQualityReport:     c.Quality,
		KeyCodeMetrics:       c.Metrics,
	}
}
