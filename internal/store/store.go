package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/reviewhub/reviewhub/internal/store/model"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Review() Review
	Snippet() Snippet
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db      *gorm.DB
	review  Review
	snippet Snippet
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:      db,
		review:  NewReviewStore(db),
		snippet: NewSnippetStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Review() Review {
	return s.review
}

func (s *DataStore) Snippet() Snippet {
	return s.snippet
}

// InitialMigration creates the schema from the models. Production
// deployments run the versioned goose migrations instead.
func (s *DataStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.CodeSnippet{}, &model.Review{})
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
