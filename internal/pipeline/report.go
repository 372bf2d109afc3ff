package pipeline

import (
	"context"
	"time"

	"patina/internal/services/gemini"
)

// Report is the final per-run summary handed to the caller and the history
// recorder once every item has reached a terminal state.
type Report struct {
	RunID      string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt time.Time
	Items      []ItemReport
}

// ItemReport enumerates one item's outcome so the caller can distinguish
// completed, failed (with the failing stage and reason), and cancelled
// items and offer per-item retry.
type ItemReport struct {
	ItemID      string
	Name        string
	Status      ItemStatus
	FailedStage StageKind
	Error       string
	PhotoCount  int
	Duration    time.Duration
	Stages      []StageResult
	Photos      []PhotoReport
}

// PhotoReport is the outcome for one detected sub-photo.
type PhotoReport struct {
	Index        int
	Label        string
	Width        int
	Height       int
	Rotation     int
	Outpainted   bool
	Restored     bool
	Improvements []string
	OutputPath   string
	Notes        []gemini.VerificationNote
}

// Completed reports how many items finished successfully.
func (r Report) Completed() int { return r.countStatus(StatusCompleted) }

// Failed reports how many items failed.
func (r Report) Failed() int { return r.countStatus(StatusFailed) }

// Cancelled reports how many items were cancelled.
func (r Report) Cancelled() int { return r.countStatus(StatusCancelled) }

func (r Report) countStatus(status ItemStatus) int {
	count := 0
	for _, item := range r.Items {
		if item.Status == status {
			count++
		}
	}
	return count
}

// Recorder persists finished runs. The pipeline treats history as an
// external collaborator; a nil recorder is valid and skips persistence.
type Recorder interface {
	RecordRun(ctx context.Context, report Report) error
}
