package model

import (
	"time"

	"github.com/google/uuid"
)

type CodeSnippet struct {
	ID        uuid.UUID `gorm:"primaryKey;"`
	ProjectID uuid.UUID `gorm:"index"`
	Filename  string
	Content   string `gorm:"type:text;not null"`
	Language  string `gorm:"index"`
	Hash      string `gorm:"uniqueIndex"`
	FileSize  int
	CreatedAt time.Time

	// Denormalized preprocessing output, filled by the analysis pipeline.
	Loc                  *int
	CyclomaticComplexity *int
	NormalizedHash       *string `gorm:"index"`
	DetectedLanguage     *string
}

// SnippetMetrics is the preprocessing result written back onto the
// snippet row.
type SnippetMetrics struct {
	Loc                  int
	CyclomaticComplexity int
	NormalizedHash       string
	DetectedLanguage     string
}
