package pipeline

import (
	"context"
	"errors"

	"github.com/reviewhub/reviewhub/internal/ai"
)

// SummaryStage asks the summarizer for an executive summary built from
// the earlier reports. Reads them read-only; the summarizer degrades to
// a local fallback on external-service trouble, so this stage only fails
// when the pipeline itself is broken.
func SummaryStage(summarizer ai.Summarizer) Stage {
	return Stage{
		Name:  "ai_summary",
		Label: "Generating AI summary...",
		Run: func(ctx context.Context, ac *Context) error {
			if ac.Metrics == nil || ac.Security == nil || ac.Performance == nil || ac.Quality == nil {
				return errors.New("summary requires the preceding analysis reports")
			}

			summary, err := summarizer.Summarize(ctx, ai.Request{
				Code:                  ac.Snippet.Content,
				Language:              ac.Metrics.DetectedLanguage,
				SecurityIssueCount:    ac.Security.VulnerabilityCount,
				PerformanceIssueCount: ac.Performance.IssueCount,
				QualityIssueCount:     ac.Quality.IssueCount,
				DocCoverage:           ac.Quality.Documentation.Coverage,
				TechDebtMinutes:       ac.Quality.TechnicalDebtMinutes,
			})
			if err != nil {
				return err
			}

			ac.Summary = summary
			return nil
		},
	}
}
