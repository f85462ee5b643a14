package jobs

import (
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

const (
	JobKind       = "analyze"
	JobTimeout    = 5 * time.Minute
	MaxJobRetries = 5
)

// Queue names, selected by caller tier at submission time.
const (
	QueueHighPriority    = "high_priority"
	QueueDefaultPriority = "default_priority"
)

// AnalyzeArgs contains the arguments for an analysis job. This is stored
// in river_job.args as JSON.
type AnalyzeArgs struct {
	ReviewID uuid.UUID `json:"review_id"`
}

// Kind returns the job kind for River registration.
func (AnalyzeArgs) Kind() string {
	return JobKind
}

// InsertOpts returns the default insert options for this job type.
func (AnalyzeArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueDefaultPriority,
		MaxAttempts: MaxJobRetries,
	}
}
