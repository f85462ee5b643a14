package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Review status constants. Transitions are monotonic:
// pending -> processing -> completed | failed.
const (
	ReviewStatusPending    = "pending"
	ReviewStatusProcessing = "processing"
	ReviewStatusCompleted  = "completed"
	ReviewStatusFailed     = "failed"
)

type Review struct {
	ID            uuid.UUID `gorm:"primaryKey;"`
	CodeSnippetID uuid.UUID `gorm:"not null;index"`
	Status        string    `gorm:"index;not null;default:pending"`
	Priority      int       `gorm:"not null;default:0"`
	ProgressStage *string
	Results       JSONMap `gorm:"type:jsonb"`
	ErrorMessage  *string `gorm:"type:text"`
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	CodeSnippet CodeSnippet `gorm:"constraint:OnDelete:CASCADE;"`
}

func (r Review) String() string {
	val, _ := json.Marshal(r)
	return string(val)
}

// Terminal reports whether the review reached a state that allows no
// further transitions.
func (r Review) Terminal() bool {
	return r.Status == ReviewStatusCompleted || r.Status == ReviewStatusFailed
}
