package ai

import "fmt"

// Prompts are versioned so a new revision can ship alongside the old one
// for comparison. The active version is fixed at build time.
const promptVersion = "v1"

var systemPrompts = map[string]string{
	"v1": "You are an expert AI code analysis assistant. " +
		"Your task is to provide a final, executive summary based on the results from static analysis tools. " +
		"The user has already seen the detailed findings from these tools. " +
		"Your summary should be concise (2-4 sentences), helpful, and written in professional, clear English. " +
		"Focus on the most critical issues and provide actionable advice. Do not repeat the individual findings. " +
		"Conclude with an overall assessment. " +
		"Respond with a JSON object of the form {\"summary\": \"...\", \"key_suggestions\": [\"...\"]}.",
}

var userPrompts = map[string]string{
	"v1": "Please provide an executive summary for the following %s code snippet, keeping in mind the static analysis results.\n\n" +
		"### Code Snippet:\n" +
		"```\n%s\n```\n\n" +
		"### Static Analysis Results:\n" +
		"- **Security Scan:** %d potential issues found.\n" +
		"- **Performance Scan:** %d potential issues found.\n" +
		"- **Quality Scan:** %d potential issues found.\n" +
		"- **Documentation Coverage:** %.1f%%\n" +
		"- **Estimated Technical Debt:** %d minutes.\n\n" +
		"### Your Summary:",
}

func buildPrompts(req Request) (string, string) {
	system := systemPrompts[promptVersion]
	user := fmt.Sprintf(userPrompts[promptVersion],
		req.Language,
		req.Code,
		req.SecurityIssueCount,
		req.PerformanceIssueCount,
		req.QualityIssueCount,
		req.DocCoverage,
		req.TechDebtMinutes,
	)
	return system, user
}
