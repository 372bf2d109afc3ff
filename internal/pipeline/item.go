package pipeline

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"patina/internal/raster"
	"patina/internal/services/gemini"
)

// ItemStatus is the lifecycle state of one item within a run.
type ItemStatus string

const (
	StatusPending     ItemStatus = "pending"
	StatusDetecting   ItemStatus = "detecting"
	StatusCropping    ItemStatus = "cropping"
	StatusOutpainting ItemStatus = "outpainting"
	StatusRestoring   ItemStatus = "restoring"
	StatusCompleted   ItemStatus = "completed"
	StatusFailed      ItemStatus = "failed"
	StatusCancelled   ItemStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s ItemStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Item is one scanned input image submitted to the pipeline. An item is
// owned exclusively by its sequencer for the run's lifetime; the mutex only
// guards fields the verification channel touches after the owning stage has
// moved on.
type Item struct {
	ID     string
	Name   string
	Source []byte
	MIME   string

	Regions []raster.Region
	Photos  []*Photo

	Status      ItemStatus
	FailedStage StageKind
	Err         error
	Results     []StageResult

	StartedAt  time.Time
	FinishedAt time.Time

	mu sync.Mutex
}

// Photo is one detected sub-photo carried through crop, fill, and
// restoration.
type Photo struct {
	Index  int
	Region raster.Region
	Box    raster.PixBox

	Image []byte
	MIME  string

	Outpainted   bool
	Restored     bool
	Improvements []string
	OutputPath   string

	Notes []gemini.VerificationNote
}

// NewItem wraps raw scan bytes as a pipeline item. The name is only used in
// reports and output file naming.
func NewItem(name string, source []byte, mimeType string) *Item {
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "image/jpeg"
	}
	return &Item{
		ID:     uuid.NewString(),
		Name:   name,
		Source: source,
		MIME:   mimeType,
		Status: StatusPending,
	}
}

func (it *Item) attachNote(photoIndex int, note gemini.VerificationNote) {
	it.mu.Lock()
	defer it.mu.Unlock()
	for _, photo := range it.Photos {
		if photo.Index == photoIndex {
			photo.Notes = append(photo.Notes, note)
			return
		}
	}
}

func (it *Item) fail(stage StageKind, err error) {
	it.Status = StatusFailed
	it.FailedStage = stage
	it.Err = err
	it.FinishedAt = time.Now()
}

// StageResult records the outcome of one (item, stage) execution: attempts
// consumed, wall time, and the terminal error when the stage failed. The
// sequencer appends one per executed stage; reports carry them through.
type StageResult struct {
	Stage    StageKind
	Attempts int
	Duration time.Duration
	Err      error
}
