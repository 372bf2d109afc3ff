package history

import "time"

// RunRecord is one persisted pipeline run.
type RunRecord struct {
	ID         string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	TotalItems int
	Completed  int
	Failed     int
	Cancelled  int
}

// ItemRecord is one persisted item outcome within a run.
type ItemRecord struct {
	RunID       string
	ItemID      string
	Name        string
	Status      string
	FailedStage string
	Error       string
	PhotoCount  int
	Duration    time.Duration
	Photos      []PhotoRecord
}

// PhotoRecord captures one sub-photo's result, serialized as JSON in the
// item row.
type PhotoRecord struct {
	Index        int      `json:"index"`
	Label        string   `json:"label,omitempty"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	Rotation     int      `json:"rotation"`
	Outpainted   bool     `json:"outpainted"`
	Restored     bool     `json:"restored"`
	Improvements []string `json:"improvements,omitempty"`
	OutputPath   string   `json:"output_path,omitempty"`
	NotesPassed  *bool    `json:"notes_passed,omitempty"`
	NoteSummary  string   `json:"note_summary,omitempty"`
}

// Stats aggregates history for the CLI summary line.
type Stats struct {
	Runs           int
	ItemsCompleted int
	ItemsFailed    int
	ItemsCancelled int
}
