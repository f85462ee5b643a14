package pipeline

import "regexp"

// Rule tables for the static analysis stages. Each table maps a finding
// type to the patterns that detect it.

var vulnerabilityPatterns = map[string][]*regexp.Regexp{
	"HARDCODED_SECRET": {
		regexp.MustCompile(`(?i)(api_key|secret|password|token)\s*=\s*["'][a-zA-Z0-9_]{16,}["']`),
	},
	"SQL_INJECTION": {
		regexp.MustCompile(`(?i)f"SELECT.*FROM.*WHERE.*\{.*\}`),
		regexp.MustCompile(`(?i)f"UPDATE.*SET.*WHERE.*\{.*\}`),
		regexp.MustCompile(`(?i)f"DELETE.*FROM.*WHERE.*\{.*\}`),
		regexp.MustCompile(`(?i)(Sprintf|format)\(.*(SELECT|UPDATE|DELETE).*%[sv]`),
	},
	"XSS_VULNERABILITY": {
		regexp.MustCompile(`(?i)\.innerHTML\s*=\s*.*`),
	},
}

// Simulates a vulnerability database lookup; maps a library name to its
// known vulnerable version.
var insecureDependencies = map[string]string{
	"requests":       "2.25.0",
	"insecure-lib":   "1.0.1",
	"old-crypto-lib": "0.9.8",
}

var importPattern = regexp.MustCompile(`^(?:import|from)\s+([a-zA-Z0-9_.-]+)`)

var performancePatterns = map[string][]*regexp.Regexp{
	"INEFFICIENT_LOOP_CONCATENATION": {
		regexp.MustCompile(`(?i)\s*for\s.*:\s*.*\+=\s*.*`),
		regexp.MustCompile(`(?i)\s*while\s.*:\s*.*\+=\s*.*`),
	},
	"POTENTIAL_N_PLUS_ONE_QUERY": {
		regexp.MustCompile(`(?i)\s*for\s.*:\s*.*\.(execute|query|get|find)\(.*\)`),
		regexp.MustCompile(`(?i)\s*while\s.*:\s*.*\.(execute|query|get|find)\(.*\)`),
	},
	"INEFFICIENT_FILE_READ": {
		regexp.MustCompile(`\.readlines\(\)`),
	},
	"HIGH_COMPLEXITY_NESTED_LOOP": {
		regexp.MustCompile(`(?i)\s*for\s.*:\s*.*\s*for\s`),
	},
}

var namingConventionPatterns = map[string]*regexp.Regexp{
	// class names should be PascalCase
	"CLASS_NAME": regexp.MustCompile(`^\s*class\s+([a-zA-Z_][a-zA-Z0-9_]*)`),
	// function and method names should be snake_case
	"FUNCTION_NAME": regexp.MustCompile(`^\s*(?:def|func)\s+([a-zA-Z_][a-zA-Z0-9_]*)`),
	// simple variable assignments should be snake_case
	"VARIABLE_NAME": regexp.MustCompile(`^\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*=[^=]`),
}

// Documentation coverage thresholds; below medium is poor.
const (
	docCoverageGood   = 75.0
	docCoverageMedium = 40.0
)

// Estimated minutes to fix one finding of each type.
var techDebtWeights = map[string]int{
	"NAMING_VIOLATION": 5,
	"NO_DOCSTRING":     15,
	"HIGH_COMPLEXITY":  30,
	"DUPLICATED_LINE":  3,
}

// Branch keywords counted by the approximate cyclomatic complexity scan.
var branchPattern = regexp.MustCompile(`(?i)(^|[^a-zA-Z0-9_])(if|elif|else if|for|while|case|when|catch|except|&&|\|\|)([^a-zA-Z0-9_]|$)`)

var commentPattern = regexp.MustCompile(`(#|//).*`)

var defPattern = regexp.MustCompile(`^\s*(?:def|class|func|function)\s+\w+`)

var docCommentPattern = regexp.MustCompile(`^\s*(?:#|//|/\*|\*|"""|''')`)
