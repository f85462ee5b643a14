package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reviewhub/reviewhub/internal/ai"
	"github.com/reviewhub/reviewhub/internal/notify"
	"github.com/reviewhub/reviewhub/internal/store"
	"github.com/reviewhub/reviewhub/internal/store/model"
)

// Events is the slice of the notification publisher the pipeline needs.
type Events interface {
	Publish(scope, targetID string, payload any)
}

// Progress is the payload streamed to the watchers of a review. Values
// published for one review are non-decreasing and end at exactly 100.
type Progress struct {
	Status   string        `json:"status"`
	Progress int           `json:"progress"`
	Stage    string        `json:"stage,omitempty"`
	Results  model.JSONMap `json:"results,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// One checkpoint per stage, published before the stage runs. The
// terminal frame carries 100.
var progressCheckpoints = []int{15, 30, 45, 60, 80}

// Orchestrator runs the analysis stages for a review in order, persists
// the outcome and streams progress. It owns the review record and all
// durable writes; stages stay pure.
type Orchestrator struct {
	store  store.Store
	events Events
	stages []Stage
}

func NewOrchestrator(s store.Store, events Events, summarizer ai.Summarizer) *Orchestrator {
	return &Orchestrator{
		store:  s,
		events: events,
		stages: []Stage{
			PreprocessStage(),
			SecurityStage(),
			PerformanceStage(),
			QualityStage(),
			SummaryStage(summarizer),
		},
	}
}

// Execute runs the full pipeline for one review. It is the failure
// boundary for the job: logically-terminal failures are persisted,
// published and swallowed so the job framework does not retry completed
// work. Only errors a retry can actually fix escape.
func (o *Orchestrator) Execute(ctx context.Context, reviewID uuid.UUID) error {
	logger := zap.S().Named("pipeline").With("review_id", reviewID)

	review, err := o.store.Review().Get(ctx, reviewID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			// nothing to persist on; still tell any watchers
			logger.Errorw("review not found")
			o.publish(reviewID, Progress{
				Status:   model.ReviewStatusFailed,
				Progress: 100,
				Error:    "review not found",
			})
			return nil
		}
		return err
	}

	if review.Terminal() {
		logger.Infow("review already terminal, skipping", "status", review.Status)
		return nil
	}

	snippet := review.CodeSnippet
	if snippet.ID == uuid.Nil || snippet.Content == "" {
		return o.fail(ctx, reviewID, "code snippet not found", logger)
	}

	if err := o.store.Review().MarkProcessing(ctx, reviewID, time.Now().UTC()); err != nil {
		return err
	}
	logger.Infow("starting analysis pipeline", "filename", snippet.Filename)

	ac := &Context{Snippet: &snippet}
	for i, stage := range o.stages {
		// observe job cancellation between stages
		if err := ctx.Err(); err != nil {
			return err
		}

		o.publish(reviewID, Progress{
			Status:   model.ReviewStatusProcessing,
			Progress: progressCheckpoints[i],
			Stage:    stage.Label,
		})
		if err := o.store.Review().SetStage(ctx, reviewID, stage.Label); err != nil {
			logger.Warnw("failed to record progress stage", "stage", stage.Name, "error", err)
		}

		if err := stage.Run(ctx, ac); err != nil {
			if ctx.Err() != nil {
				// job timeout or cancellation, not a stage-level failure
				return err
			}
			logger.Errorw("stage failed", "stage", stage.Name, "error", err)
			return o.fail(ctx, reviewID, err.Error(), logger)
		}
		logger.Debugw("stage complete", "stage", stage.Name)

		if stage.Name == "preprocess" {
			o.persistMetrics(ctx, snippet.ID, ac.Metrics, logger)
		}
	}

	results := ac.Bundle()
	completedAt := time.Now().UTC()
	if err := o.store.Review().Complete(ctx, reviewID, results, completedAt); err != nil {
		// results could not be persisted; let the framework re-run the
		// whole pipeline
		logger.Errorw("failed to persist results", "error", err)
		return err
	}

	o.publish(reviewID, Progress{
		Status:   model.ReviewStatusCompleted,
		Progress: 100,
		Stage:    "Done!",
		Results:  results,
	})
	logger.Infow("analysis pipeline complete")
	return nil
}

// fail persists the terminal failure and publishes the single terminal
// frame. Always returns nil: the failure is logically terminal and must
// not look like an unhandled crash to the job framework.
func (o *Orchestrator) fail(ctx context.Context, reviewID uuid.UUID, message string, logger *zap.SugaredLogger) error {
	if err := o.store.Review().Fail(ctx, reviewID, message, time.Now().UTC()); err != nil {
		logger.Errorw("failed to persist review failure", "error", err)
	}

	o.publish(reviewID, Progress{
		Status:   model.ReviewStatusFailed,
		Progress: 100,
		Stage:    "An error occurred.",
		Error:    message,
	})
	return nil
}

// persistMetrics denormalizes the preprocess output onto the snippet
// row. Best effort: the metrics also live in the results bundle.
func (o *Orchestrator) persistMetrics(ctx context.Context, snippetID uuid.UUID, metrics *CodeMetrics, logger *zap.SugaredLogger) {
	if metrics == nil {
		return
	}
	err := o.store.Snippet().UpdateMetrics(ctx, snippetID, model.SnippetMetrics{
		Loc:                  metrics.Loc,
		CyclomaticComplexity: metrics.CyclomaticComplexity,
		NormalizedHash:       metrics.NormalizedHash,
		DetectedLanguage:     metrics.DetectedLanguage,
	})
	if err != nil {
		logger.Warnw("failed to persist snippet metrics", "error", err)
	}
}

func (o *Orchestrator) publish(reviewID uuid.UUID, progress Progress) {
	o.events.Publish(notify.ScopeJob, reviewID.String(), progress)
}
