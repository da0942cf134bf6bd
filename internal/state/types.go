package state

import (
	"time"
)

// Stats contains counters for one mirror run.
type Stats struct {
	PagesSaved   int           `json:"pages_saved"`
	AssetsSaved  int           `json:"assets_saved"`
	Failures     int           `json:"failures"`
	Skipped      int           `json:"skipped"`
	BytesWritten int64         `json:"bytes_written"`
	Duration     time.Duration `json:"duration"`
}

// ErrorRecord is a recovered error kept for the run summary.
type ErrorRecord struct {
	URL       string    `json:"url"`
	Type      string    `json:"type"`
	Operation string    `json:"operation"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the persisted view of a run, read back by the status command.
type Snapshot struct {
	Target      string            `json:"target"`
	OutputDir   string            `json:"output_dir"`
	StartedAt   time.Time         `json:"started_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Finished    bool              `json:"finished"`
	Stats       Stats             `json:"stats"`
	VisitedURLs []string          `json:"visited_urls"`
	Files       map[string]string `json:"files"`
	Errors      []ErrorRecord     `json:"errors"`
}
