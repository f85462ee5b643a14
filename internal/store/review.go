package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reviewhub/reviewhub/internal/store/model"
)

// Review interface for review-related database operations.
type Review interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Review, error)
	Create(ctx context.Context, review model.Review) (*model.Review, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	SetStage(ctx context.Context, id uuid.UUID, stage string) error
	Complete(ctx context.Context, id uuid.UUID, results model.JSONMap, completedAt time.Time) error
	Fail(ctx context.Context, id uuid.UUID, message string, completedAt time.Time) error
}

type ReviewStore struct {
	db *gorm.DB
}

// Make sure we conform to Review interface
var _ Review = (*ReviewStore)(nil)

func NewReviewStore(db *gorm.DB) Review {
	return &ReviewStore{db: db}
}

func (s *ReviewStore) Get(ctx context.Context, id uuid.UUID) (*model.Review, error) {
	var review model.Review
	result := s.getDB(ctx).Preload("CodeSnippet").First(&review, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying review: %w", result.Error)
	}

	return &review, nil
}

func (s *ReviewStore) Create(ctx context.Context, review model.Review) (*model.Review, error) {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	if review.Status == "" {
		review.Status = model.ReviewStatusPending
	}

	result := s.getDB(ctx).Create(&review)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating review: %w", result.Error)
	}

	return &review, nil
}

// MarkProcessing moves a pending review into processing. The status guard
// keeps the transition monotonic when two workers race on the same review.
func (s *ReviewStore) MarkProcessing(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	result := s.getDB(ctx).Model(&model.Review{}).
		Where("id = ?", id).
		Where("status IN ?", []string{model.ReviewStatusPending, model.ReviewStatusProcessing}).
		Updates(map[string]any{
			"status":     model.ReviewStatusProcessing,
			"started_at": startedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("updating review status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// SetStage records the label of the phase the review is currently in.
// Informational only; failures are tolerable and the caller treats them
// as best effort.
func (s *ReviewStore) SetStage(ctx context.Context, id uuid.UUID, stage string) error {
	result := s.getDB(ctx).Model(&model.Review{}).
		Where("id = ?", id).
		Where("status = ?", model.ReviewStatusProcessing).
		Update("progress_stage", stage)
	if result.Error != nil {
		return fmt.Errorf("updating review stage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (s *ReviewStore) Complete(ctx context.Context, id uuid.UUID, results model.JSONMap, completedAt time.Time) error {
	result := s.getDB(ctx).Model(&model.Review{}).
		Where("id = ?", id).
		Where("status = ?", model.ReviewStatusProcessing).
		Updates(map[string]any{
			"status":       model.ReviewStatusCompleted,
			"results":      results,
			"completed_at": completedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("completing review: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (s *ReviewStore) Fail(ctx context.Context, id uuid.UUID, message string, completedAt time.Time) error {
	result := s.getDB(ctx).Model(&model.Review{}).
		Where("id = ?", id).
		Where("status IN ?", []string{model.ReviewStatusPending, model.ReviewStatusProcessing}).
		Updates(map[string]any{
			"status":        model.ReviewStatusFailed,
			"error_message": message,
			"completed_at":  completedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failing review: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (s *ReviewStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
