package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river/rivertype"
	"go.uber.org/zap"

	"github.com/reviewhub/reviewhub/internal/jobs"
	"github.com/reviewhub/reviewhub/internal/store"
	"github.com/reviewhub/reviewhub/internal/store/model"
)

// maxSnippetSize bounds submissions to 1MiB of source text.
const maxSnippetSize = 1 << 20

type SubmitForm struct {
	Filename string
	Content  string
	Language string
	Priority int
}

// Enqueuer schedules the analysis job for a submitted review.
type Enqueuer interface {
	EnqueueReview(ctx context.Context, reviewID uuid.UUID, queue string) (*rivertype.JobRow, error)
}

type ReviewService struct {
	store store.Store
	jobs  Enqueuer
}

func NewReviewService(s store.Store, enqueuer Enqueuer) *ReviewService {
	return &ReviewService{store: s, jobs: enqueuer}
}

// CreateReview persists the snippet and its pending review in one
// transaction, then enqueues the analysis job. The commit happens
// before the enqueue: the job is durable the moment Insert returns, and
// a worker that grabs it immediately must already see the review row.
// If the enqueue then fails the review is marked failed so it does not
// sit in pending with no job behind it.
func (s *ReviewService) CreateReview(ctx context.Context, form SubmitForm) (*model.Review, error) {
	logger := zap.S().Named("review_service")

	if form.Content == "" {
		return nil, NewErrInvalidSubmission("content must not be empty")
	}
	if len(form.Content) > maxSnippetSize {
		return nil, NewErrInvalidSubmission("content exceeds the 1MiB limit")
	}
	if form.Filename == "" {
		form.Filename = "snippet.txt"
	}

	hash := sha256.Sum256([]byte(form.Content))

	ctx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}

	snippet, err := s.store.Snippet().Create(ctx, model.CodeSnippet{
		Filename: form.Filename,
		Content:  form.Content,
		Language: form.Language,
		Hash:     hex.EncodeToString(hash[:]),
	})
	if err != nil {
		_, _ = store.Rollback(ctx)
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, NewErrInvalidSubmission("identical snippet already submitted")
		}
		return nil, err
	}

	review, err := s.store.Review().Create(ctx, model.Review{
		CodeSnippetID: snippet.ID,
		Priority:      form.Priority,
	})
	if err != nil {
		_, _ = store.Rollback(ctx)
		return nil, err
	}

	if ctx, err = store.Commit(ctx); err != nil {
		return nil, err
	}

	queue := jobs.QueueDefaultPriority
	if form.Priority > 0 {
		queue = jobs.QueueHighPriority
	}
	job, err := s.jobs.EnqueueReview(ctx, review.ID, queue)
	if err != nil {
		logger.Errorw("failed to enqueue review", "review_id", review.ID, "error", err)
		if failErr := s.store.Review().Fail(ctx, review.ID, "failed to queue analysis job", time.Now().UTC()); failErr != nil {
			logger.Errorw("failed to mark review failed", "review_id", review.ID, "error", failErr)
		}
		return nil, err
	}

	logger.Infow("review submitted",
		"review_id", review.ID, "queue", queue, "job_id", job.ID, "job_state", job.State)
	review.CodeSnippet = *snippet
	return review, nil
}

func (s *ReviewService) GetReview(ctx context.Context, id uuid.UUID) (*model.Review, error) {
	review, err := s.store.Review().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrReviewNotFound(id)
		}
		return nil, err
	}
	return review, nil
}
