package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// TextWriter writes human readable summaries.
type TextWriter struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewTextWriter creates a new text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{writer: w}
}

// WriteReport writes a short description of the report.
func (t *TextWriter) WriteReport(report *Report) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := fmt.Fprintf(t.writer, "Mirrored %s: %d pages, %d files, %d URLs visited\n",
		report.BaseURL, report.TotalPages, report.TotalFiles, len(report.VisitedURLs))
	return err
}

// WriteSummary writes the run summary.
func (t *TextWriter) WriteSummary(s *Summary) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	b.WriteString("\n=== Mirror Summary ===\n")
	fmt.Fprintf(&b, "Target:     %s\n", s.Target)
	fmt.Fprintf(&b, "Output:     %s\n", s.OutputDir)
	fmt.Fprintf(&b, "Duration:   %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Pages:      %d\n", s.Statistics.PagesSaved)
	fmt.Fprintf(&b, "Assets:     %d\n", s.Statistics.AssetsSaved)
	fmt.Fprintf(&b, "Bytes:      %d\n", s.Statistics.BytesWritten)
	fmt.Fprintf(&b, "Requests:   %d\n", s.Statistics.Requests)
	fmt.Fprintf(&b, "Failures:   %d\n", s.Statistics.Failures)
	fmt.Fprintf(&b, "Skipped:    %d\n", s.Statistics.Skipped)

	if len(s.StatusCodes) > 0 {
		codes := make([]int, 0, len(s.StatusCodes))
		for code := range s.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		b.WriteString("Status codes:\n")
		for _, code := range codes {
			fmt.Fprintf(&b, "  %d: %d\n", code, s.StatusCodes[code])
		}
	}

	if len(s.Errors) > 0 {
		b.WriteString("Errors:\n")
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", e.Type, e.URL, e.Message)
		}
	}

	if s.Interrupted {
		b.WriteString("Interrupted before completion\n")
	}

	_, err := io.WriteString(t.writer, b.String())
	return err
}

// Flush is a no-op.
func (t *TextWriter) Flush() error {
	return nil
}

// Close is a no-op.
func (t *TextWriter) Close() error {
	return nil
}
