package jobs

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"

	"github.com/reviewhub/reviewhub/internal/pipeline"
)

type Client struct {
	*river.Client[pgx.Tx]
}

// NewClient builds the worker-side River client. The high-priority queue
// gets the larger worker allotment so paid-tier submissions are drained
// first under load.
func NewClient(ctx context.Context, pool *pgxpool.Pool, orchestrator *pipeline.Orchestrator) (*Client, error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewAnalyzeWorker(orchestrator))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			QueueHighPriority:    {MaxWorkers: 10},
			QueueDefaultPriority: {MaxWorkers: 5},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, err
	}

	return &Client{Client: riverClient}, nil
}

// NewInsertClient builds an insert-only client for processes that
// enqueue jobs but never work them.
func NewInsertClient(pool *pgxpool.Pool) (*Client, error) {
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		return nil, err
	}
	return &Client{Client: riverClient}, nil
}

// EnqueueReview inserts the analysis job for a review on the given queue
// and returns the inserted job row.
func (c *Client) EnqueueReview(ctx context.Context, reviewID uuid.UUID, queue string) (*rivertype.JobRow, error) {
	if queue == "" {
		queue = QueueDefaultPriority
	}

	result, err := c.Insert(ctx, AnalyzeArgs{ReviewID: reviewID}, &river.InsertOpts{
		Queue:       queue,
		MaxAttempts: MaxJobRetries,
	})
	if err != nil {
		return nil, err
	}
	return result.Job, nil
}
