package jobs

import (
	"context"
	"time"

	"github.com/riverqueue/river"

	"github.com/reviewhub/reviewhub/internal/pipeline"
)

type AnalyzeWorker struct {
	river.WorkerDefaults[AnalyzeArgs]
	orchestrator *pipeline.Orchestrator
}

func NewAnalyzeWorker(orchestrator *pipeline.Orchestrator) *AnalyzeWorker {
	return &AnalyzeWorker{orchestrator: orchestrator}
}

func (w *AnalyzeWorker) Timeout(job *river.Job[AnalyzeArgs]) time.Duration {
	return JobTimeout
}

func (w *AnalyzeWorker) Work(ctx context.Context, job *river.Job[AnalyzeArgs]) error {
	// Check for cancellation before starting
	if err := ctx.Err(); err != nil {
		return err
	}

	// The orchestrator is the failure boundary: terminal failures are
	// persisted and swallowed there so River only retries infra errors.
	return w.orchestrator.Execute(ctx, job.Args.ReviewID)
}
