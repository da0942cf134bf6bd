// Package output writes mirrored files, the extraction report and run summaries.
package output

import (
	"io"
)

// Writer defines the interface for summary writers.
type Writer interface {
	// WriteReport writes the extraction report
	WriteReport(report *Report) error

	// WriteSummary writes the end-of-run summary
	WriteSummary(summary *Summary) error

	// Flush flushes any buffered output
	Flush() error

	// Close closes the writer
	Close() error
}

// Config holds output configuration.
type Config struct {
	Format string
	Pretty bool
}

// NewWriter creates a new output writer.
func NewWriter(w io.Writer, config Config) Writer {
	switch config.Format {
	case "text":
		return NewTextWriter(w)
	default:
		return NewJSONWriter(w, config.Pretty)
	}
}
