package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reviewhub/reviewhub/internal/store/model"
)

// Snippet interface for code-snippet database operations.
type Snippet interface {
	Get(ctx context.Context, id uuid.UUID) (*model.CodeSnippet, error)
	Create(ctx context.Context, snippet model.CodeSnippet) (*model.CodeSnippet, error)
	UpdateMetrics(ctx context.Context, id uuid.UUID, metrics model.SnippetMetrics) error
}

type SnippetStore struct {
	db *gorm.DB
}

// Make sure we conform to Snippet interface
var _ Snippet = (*SnippetStore)(nil)

func NewSnippetStore(db *gorm.DB) Snippet {
	return &SnippetStore{db: db}
}

func (s *SnippetStore) Get(ctx context.Context, id uuid.UUID) (*model.CodeSnippet, error) {
	var snippet model.CodeSnippet
	result := s.getDB(ctx).First(&snippet, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying snippet: %w", result.Error)
	}

	return &snippet, nil
}

func (s *SnippetStore) Create(ctx context.Context, snippet model.CodeSnippet) (*model.CodeSnippet, error) {
	if snippet.ID == uuid.Nil {
		snippet.ID = uuid.New()
	}
	snippet.FileSize = len(snippet.Content)

	result := s.getDB(ctx).Create(&snippet)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating snippet: %w", result.Error)
	}

	return &snippet, nil
}

func (s *SnippetStore) UpdateMetrics(ctx context.Context, id uuid.UUID, metrics model.SnippetMetrics) error {
	result := s.getDB(ctx).Model(&model.CodeSnippet{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"loc":                   metrics.Loc,
			"cyclomatic_complexity": metrics.CyclomaticComplexity,
			"normalized_hash":       metrics.NormalizedHash,
			"detected_language":     metrics.DetectedLanguage,
		})
	if result.Error != nil {
		return fmt.Errorf("updating snippet metrics: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (s *SnippetStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
