package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// PerformanceStage scans for common performance anti-patterns. Blank and
// commented lines are skipped; a line reports at most one finding per
// issue type.
func PerformanceStage() Stage {
	return Stage{
		Name:  "performance",
		Label: "Analyzing performance patterns...",
		Run: func(_ context.Context, ac *Context) error {
			findings := checkPerformancePatterns(ac.Snippet.Content)

			ac.Performance = &PerformanceReport{
				IssueCount: len(findings),
				Findings:   findings,
			}
			return nil
		},
	}
}

func checkPerformancePatterns(content string) []Finding {
	findings := []Finding{}

	types := make([]string, 0, len(performancePatterns))
	for issueType := range performancePatterns {
		types = append(types, issueType)
	}
	sort.Strings(types)

	for lineNum, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" || strings.HasPrefix(stripped, "#") || strings.HasPrefix(stripped, "//") {
			continue
		}

		for _, issueType := range types {
			for _, pattern := range performancePatterns[issueType] {
				if pattern.MatchString(line) {
					findings = append(findings, Finding{
						Line:        lineNum + 1,
						Type:        issueType,
						Description: fmt.Sprintf("Potential performance issue found: %s", titleCase(issueType)),
						Snippet:     stripped,
					})
					// one finding per issue type per line
					break
				}
			}
		}
	}
	return findings
}
