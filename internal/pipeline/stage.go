package pipeline

import (
	"context"
	"fmt"
)

// Stage is one pluggable unit of the analysis pipeline. Stages execute
// strictly in order because later stages consume earlier reports. Run
// must not touch durable state; persistence belongs to the orchestrator.
type Stage struct {
	// Name is the stable stage identifier.
	Name string
	// Label is the human-readable progress text streamed to clients.
	Label string
	// Run consumes the accumulated context and fills in its report.
	Run func(ctx context.Context, ac *Context) error
}

// StageError tags a failure with the stage it came from. It aborts the
// remaining stages; the review ends failed with no partial results.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
