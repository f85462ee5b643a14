package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

const duplicationBlockLines = 4

// QualityStage checks naming conventions, estimates documentation
// coverage, detects duplicated line blocks and turns the findings into a
// technical-debt estimate. Reads the preprocess metrics for the
// high-complexity surcharge.
func QualityStage() Stage {
	return Stage{
		Name:  "quality",
		Label: "Checking code quality...",
		Run: func(_ context.Context, ac *Context) error {
			content := ac.Snippet.Content

			findings := checkNamingConventions(content)
			docs, docFindings := analyzeDocumentation(content)
			findings = append(findings, docFindings...)
			findings = append(findings, detectDuplication(content, duplicationBlockLines)...)

			complexity := 0
			if ac.Metrics != nil {
				complexity = ac.Metrics.CyclomaticComplexity
			}

			ac.Quality = &QualityReport{
				IssueCount:           len(findings),
				Documentation:        docs,
				TechnicalDebtMinutes: calculateTechnicalDebt(findings, complexity),
				Findings:             findings,
			}
			return nil
		},
	}
}

func checkNamingConventions(content string) []Finding {
	findings := []Finding{}

	types := make([]string, 0, len(namingConventionPatterns))
	for nameType := range namingConventionPatterns {
		types = append(types, nameType)
	}
	sort.Strings(types)

	for lineNum, line := range strings.Split(content, "\n") {
		for _, nameType := range types {
			match := namingConventionPatterns[nameType].FindStringSubmatch(line)
			if match == nil {
				continue
			}
			name := match[1]
			if nameType == "CLASS_NAME" {
				// PascalCase is valid; all-caps identifiers are constants
				if name[0] >= 'A' && name[0] <= 'Z' {
					continue
				}
			} else if name == strings.ToLower(name) {
				// valid snake_case
				continue
			}
			findings = append(findings, Finding{
				Line: lineNum + 1,
				Type: "NAMING_VIOLATION",
				Description: fmt.Sprintf("Potential naming convention violation for %s: %q",
					strings.ToLower(strings.ReplaceAll(nameType, "_", " ")), name),
			})
		}
	}
	return findings
}

// analyzeDocumentation estimates coverage from the share of definitions
// immediately preceded or followed by a doc comment.
func analyzeDocumentation(content string) (Documentation, []Finding) {
	lines := strings.Split(content, "\n")
	totalDefs := 0
	documented := 0
	findings := []Finding{}

	for i, line := range lines {
		if !defPattern.MatchString(line) {
			continue
		}
		totalDefs++

		if (i > 0 && docCommentPattern.MatchString(lines[i-1])) ||
			(i+1 < len(lines) && docCommentPattern.MatchString(lines[i+1])) {
			documented++
			continue
		}
		findings = append(findings, Finding{
			Line:        i + 1,
			Type:        "NO_DOCSTRING",
			Description: fmt.Sprintf("Missing documentation for %q", strings.TrimSpace(line)),
		})
	}

	coverage := 100.0
	if totalDefs > 0 {
		coverage = float64(documented) / float64(totalDefs) * 100.0
	}

	rating := "poor"
	switch {
	case coverage >= docCoverageGood:
		rating = "good"
	case coverage >= docCoverageMedium:
		rating = "medium"
	}

	return Documentation{Coverage: coverage, Rating: rating}, findings
}

// detectDuplication reports blocks of minLines consecutive non-empty
// lines that occur more than once.
func detectDuplication(content string, minLines int) []Finding {
	findings := []Finding{}

	lines := []string{}
	for _, line := range strings.Split(content, "\n") {
		if stripped := strings.TrimSpace(line); stripped != "" {
			lines = append(lines, stripped)
		}
	}

	blocks := map[uint64][]int{}
	order := []uint64{}
	for i := 0; i+minLines <= len(lines); i++ {
		h := fnv.New64a()
		for _, line := range lines[i : i+minLines] {
			_, _ = h.Write([]byte(line))
		}
		sum := h.Sum64()
		if _, seen := blocks[sum]; !seen {
			order = append(order, sum)
		}
		blocks[sum] = append(blocks[sum], i+1)
	}

	for _, sum := range order {
		starts := blocks[sum]
		if len(starts) < 2 {
			continue
		}
		found := make([]string, len(starts))
		for i, s := range starts {
			found[i] = fmt.Sprintf("%d", s)
		}
		findings = append(findings, Finding{
			Lines: starts,
			Type:  "DUPLICATED_LINE",
			Description: fmt.Sprintf("Duplicated block of %d lines found starting at lines: %s",
				minLines, strings.Join(found, ", ")),
		})
	}
	return findings
}

func calculateTechnicalDebt(findings []Finding, complexity int) int {
	total := 0
	for _, finding := range findings {
		total += techDebtWeights[finding.Type]
	}
	if complexity > 10 {
		total += techDebtWeights["HIGH_COMPLEXITY"]
	}
	return total
}
