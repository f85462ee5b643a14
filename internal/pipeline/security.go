package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// SecurityStage scans the snippet line-by-line against the vulnerability
// pattern tables and the insecure dependency list.
func SecurityStage() Stage {
	return Stage{
		Name:  "security",
		Label: "Scanning for security vulnerabilities...",
		Run: func(_ context.Context, ac *Context) error {
			content := ac.Snippet.Content

			findings := checkVulnerabilityPatterns(content)
			findings = append(findings, checkInsecureDependencies(content)...)

			ac.Security = &SecurityReport{
				IsSecure:           len(findings) == 0,
				VulnerabilityCount: len(findings),
				Findings:           findings,
			}
			return nil
		},
	}
}

func checkVulnerabilityPatterns(content string) []Finding {
	findings := []Finding{}

	types := make([]string, 0, len(vulnerabilityPatterns))
	for vulnType := range vulnerabilityPatterns {
		types = append(types, vulnType)
	}
	sort.Strings(types)

	for lineNum, line := range strings.Split(content, "\n") {
		for _, vulnType := range types {
			for _, pattern := range vulnerabilityPatterns[vulnType] {
				if pattern.MatchString(line) {
					findings = append(findings, Finding{
						Line:        lineNum + 1,
						Type:        vulnType,
						Description: fmt.Sprintf("Potential vulnerability found: %s", titleCase(vulnType)),
						Snippet:     strings.TrimSpace(line),
					})
				}
			}
		}
	}
	return findings
}

func checkInsecureDependencies(content string) []Finding {
	findings := []Finding{}
	for lineNum, line := range strings.Split(content, "\n") {
		match := importPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		library := match[1]
		if version, ok := insecureDependencies[library]; ok {
			findings = append(findings, Finding{
				Line: lineNum + 1,
				Type: "INSECURE_DEPENDENCY",
				Description: fmt.Sprintf("Use of potentially insecure library: %q. Known vulnerable version: %s",
					library, version),
				Snippet: strings.TrimSpace(line),
			})
		}
	}
	return findings
}

// titleCase turns FINDING_TYPE into "Finding Type".
func titleCase(findingType string) string {
	words := strings.Split(strings.ToLower(findingType), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
