// Package mirror downloads a website into a local directory that can be
// browsed offline: pages and their assets are saved under paths derived
// from their URLs and every reference between them is rewritten to a
// relative local path.
package mirror

import (
	"time"

	"github.com/PentesterFlow/OpenMirror/internal/framework"
	"github.com/PentesterFlow/OpenMirror/internal/metrics"
	"github.com/PentesterFlow/OpenMirror/internal/output"
	"github.com/PentesterFlow/OpenMirror/internal/state"
)

// Result is the outcome of one mirror run.
type Result struct {
	Target      string                     `json:"target"`
	OutputDir   string                     `json:"output_dir"`
	StartedAt   time.Time                  `json:"started_at"`
	CompletedAt time.Time                  `json:"completed_at"`
	Report      *output.Report             `json:"report"`
	Stats       state.Stats                `json:"stats"`
	Errors      []state.ErrorRecord        `json:"errors,omitempty"`
	Metrics     *metrics.Snapshot          `json:"metrics,omitempty"`
	App         *framework.DetectionResult `json:"app,omitempty"`
	Interrupted bool                       `json:"interrupted,omitempty"`
}

// Summary converts the result for the output writers.
func (r *Result) Summary() *output.Summary {
	s := &output.Summary{
		Target:      r.Target,
		OutputDir:   r.OutputDir,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Duration:    r.CompletedAt.Sub(r.StartedAt),
		Statistics: output.Statistics{
			PagesSaved:   r.Stats.PagesSaved,
			AssetsSaved:  r.Stats.AssetsSaved,
			Failures:     r.Stats.Failures,
			Skipped:      r.Stats.Skipped,
			BytesWritten: r.Stats.BytesWritten,
		},
		Interrupted: r.Interrupted,
	}

	if r.Metrics != nil {
		s.Statistics.Requests = r.Metrics.RequestsTotal
		s.StatusCodes = make(map[int]int, len(r.Metrics.StatusCodes))
		for code, n := range r.Metrics.StatusCodes {
			s.StatusCodes[code] = int(n)
		}
	}

	for _, e := range r.Errors {
		s.Errors = append(s.Errors, output.ErrorLine{
			URL:       e.URL,
			Type:      e.Type,
			Operation: e.Operation,
			Message:   e.Message,
		})
	}
	return s
}
