package output

import (
	"encoding/json"
	"io"
	"sync"
)

// JSONWriter writes output in JSON format.
type JSONWriter struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
	closed bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer, pretty bool) *JSONWriter {
	return &JSONWriter{
		writer: w,
		pretty: pretty,
	}
}

// WriteReport writes the extraction report.
func (j *JSONWriter) WriteReport(report *Report) error {
	return j.write(report)
}

// WriteSummary writes the run summary.
func (j *JSONWriter) WriteSummary(summary *Summary) error {
	return j.write(summary)
}

func (j *JSONWriter) write(v interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}

	data, err := marshal(v, j.pretty)
	if err != nil {
		return err
	}

	if _, err := j.writer.Write(data); err != nil {
		return err
	}

	// Add newline
	_, err = j.writer.Write([]byte("\n"))
	return err
}

func marshal(v interface{}, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// Flush flushes the writer.
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if flusher, ok := j.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close closes the writer.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closed = true

	if closer, ok := j.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
