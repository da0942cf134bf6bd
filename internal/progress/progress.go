// Package progress renders a single-line progress display for a mirror run.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Stats is the state rendered on each update.
type Stats struct {
	Visited  int
	Pages    int
	Assets   int
	Queue    int
	Failures int
	Bytes    int64
}

// Display manages the progress line during a mirror run.
type Display struct {
	mu      sync.Mutex
	out     io.Writer
	started bool
	stopped bool

	startTime time.Time
	last      Stats
	lastLine  string
}

// New creates a progress display writing to stderr.
func New() *Display {
	return NewWithWriter(os.Stderr)
}

// NewWithWriter creates a progress display writing to w.
func NewWithWriter(w io.Writer) *Display {
	return &Display{out: w}
}

// Start begins the progress display.
func (d *Display) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}
	d.started = true
	d.startTime = time.Now()
}

// Update redraws the progress line.
func (d *Display) Update(s Stats) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = s
	if !d.started || d.stopped {
		return
	}

	elapsed := time.Since(d.startTime)
	line := fmt.Sprintf("\r[%s] %3d%% | Pages: %d | Assets: %d | Queue: %d | Failed: %d | %s | %s",
		bar(percent(s), 30), percent(s), s.Pages, s.Assets, s.Queue, s.Failures,
		formatBytes(s.Bytes), formatDuration(elapsed))

	// Clear previous line and print new one
	if len(line) < len(d.lastLine) {
		fmt.Fprint(d.out, "\r"+strings.Repeat(" ", len(d.lastLine)))
	}
	fmt.Fprint(d.out, line)
	d.lastLine = line
}

// Run redraws the display every interval from stats until ctx is done.
func (d *Display) Run(ctx context.Context, interval time.Duration, stats func() Stats) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Update(stats())
		}
	}
}

// Stop ends the display.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.started {
		return
	}
	d.stopped = true

	// Move past the progress line
	fmt.Fprintln(d.out)
}

// Last returns the most recent stats passed to Update.
func (d *Display) Last() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// percent estimates completion as processed pages over pages known so far.
func percent(s Stats) int {
	if s.Visited == 0 {
		return 0
	}
	if s.Queue == 0 {
		return 100
	}
	done := s.Visited - s.Queue
	p := done * 100 / s.Visited
	if p > 99 {
		p = 99
	}
	if p < 0 {
		p = 0
	}
	return p
}

func bar(progress, width int) string {
	filled := progress * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
