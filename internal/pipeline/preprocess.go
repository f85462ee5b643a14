package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

// PreprocessStage computes the code metrics every later stage builds on:
// non-empty line count, an approximate cyclomatic complexity, a
// normalized hash for similarity detection and the detected language.
func PreprocessStage() Stage {
	return Stage{
		Name:  "preprocess",
		Label: "Preprocessing code...",
		Run: func(_ context.Context, ac *Context) error {
			if ac.Snippet == nil || ac.Snippet.Content == "" {
				return errors.New("snippet has no content")
			}

			content := ac.Snippet.Content
			ac.Metrics = &CodeMetrics{
				Loc:                  countLoc(content),
				CyclomaticComplexity: approximateComplexity(content),
				NormalizedHash:       normalizedHash(content),
				DetectedLanguage:     detectLanguage(content, ac.Snippet.Filename),
			}
			return nil
		},
	}
}

func countLoc(content string) int {
	loc := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			loc++
		}
	}
	return loc
}

// approximateComplexity counts branch keywords plus one entry point. A
// rough stand-in for a per-language AST walk, adequate for scoring.
func approximateComplexity(content string) int {
	complexity := 1
	for _, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" || strings.HasPrefix(stripped, "#") || strings.HasPrefix(stripped, "//") {
			continue
		}
		complexity += len(branchPattern.FindAllString(line, -1))
	}
	return complexity
}

// normalizedHash strips comments and whitespace before hashing so
// trivially reformatted copies of the same snippet collide.
func normalizedHash(content string) string {
	normalized := commentPattern.ReplaceAllString(content, "")
	normalized = regexp.MustCompile(`\s+`).ReplaceAllString(normalized, "")
	normalized = strings.ToLower(strings.TrimSpace(normalized))

	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

var extensionLanguages = map[string]string{
	".py":   "Python",
	".go":   "Go",
	".js":   "JavaScript",
	".jsx":  "JavaScript",
	".ts":   "TypeScript",
	".tsx":  "TypeScript",
	".java": "Java",
	".rb":   "Ruby",
	".rs":   "Rust",
	".c":    "C",
	".h":    "C",
	".cpp":  "C++",
	".cs":   "C#",
	".php":  "PHP",
	".sql":  "SQL",
	".sh":   "Shell",
}

func detectLanguage(content, filename string) string {
	if filename != "" {
		if lang, ok := extensionLanguages[strings.ToLower(filepath.Ext(filename))]; ok {
			return lang
		}
	}

	switch {
	case strings.Contains(content, "def ") && strings.Contains(content, ":"):
		return "Python"
	case strings.Contains(content, "func ") && strings.Contains(content, "package "):
		return "Go"
	case strings.Contains(content, "function ") || strings.Contains(content, "=>"):
		return "JavaScript"
	case strings.Contains(content, "public class ") || strings.Contains(content, "public static void"):
		return "Java"
	default:
		return "Text"
	}
}
