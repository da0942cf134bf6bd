// Package metrics collects per-run counters for a mirror.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// bucketBounds are the upper bounds in milliseconds of the response time
// histogram; the last bucket is open ended.
var bucketBounds = [...]int64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Collector collects and aggregates metrics.
type Collector struct {
	// Counters
	requestsTotal atomic.Int64
	retriesTotal  atomic.Int64
	errorsTotal   atomic.Int64
	pagesSaved    atomic.Int64
	assetsSaved   atomic.Int64
	skipped       atomic.Int64
	sharedFetches atomic.Int64
	bytesFetched  atomic.Int64
	bytesWritten  atomic.Int64

	// Response time tracking
	responseTimesSum atomic.Int64
	responseTimesNum atomic.Int64
	responseBuckets  [len(bucketBounds) + 1]atomic.Int64

	// Gauges
	queueDepth   atomic.Int64
	activePages  atomic.Int64
	activeAssets atomic.Int64

	mu          sync.RWMutex
	errorCounts map[string]int64
	statusCodes map[int]int64
	startTime   time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		errorCounts: make(map[string]int64),
		statusCodes: make(map[int]int64),
		startTime:   time.Now(),
	}
}

// RecordResponse records a completed fetch: its status code, duration,
// body size and the number of attempts it took.
func (c *Collector) RecordResponse(status int, d time.Duration, size int64, attempts int) {
	c.requestsTotal.Add(1)
	if attempts > 1 {
		c.retriesTotal.Add(int64(attempts - 1))
	}
	c.bytesFetched.Add(size)
	c.RecordResponseTime(d)
	if status > 0 {
		c.RecordStatusCode(status)
	}
}

// RecordResponseTime records a response time.
func (c *Collector) RecordResponseTime(d time.Duration) {
	ms := d.Milliseconds()
	c.responseTimesSum.Add(ms)
	c.responseTimesNum.Add(1)
	c.responseBuckets[bucket(ms)].Add(1)
}

func bucket(ms int64) int {
	for i, bound := range bucketBounds {
		if ms < bound {
			return i
		}
	}
	return len(bucketBounds)
}

// RecordStatusCode records an HTTP status code.
func (c *Collector) RecordStatusCode(code int) {
	c.mu.Lock()
	c.statusCodes[code]++
	c.mu.Unlock()
}

// RecordError records a recovered error by type.
func (c *Collector) RecordError(errorType string) {
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.errorCounts[errorType]++
	c.mu.Unlock()
}

// RecordPageSaved records a saved page of n bytes.
func (c *Collector) RecordPageSaved(n int64) {
	c.pagesSaved.Add(1)
	c.bytesWritten.Add(n)
}

// RecordAssetSaved records a saved asset of n bytes.
func (c *Collector) RecordAssetSaved(n int64) {
	c.assetsSaved.Add(1)
	c.bytesWritten.Add(n)
}

// RecordSkip records an item that was not mirrored.
func (c *Collector) RecordSkip() {
	c.skipped.Add(1)
}

// RecordSharedFetch records an asset request served by an in-flight download.
func (c *Collector) RecordSharedFetch() {
	c.sharedFetches.Add(1)
}

// SetQueueDepth sets the current frontier length.
func (c *Collector) SetQueueDepth(depth int64) {
	c.queueDepth.Store(depth)
}

// PageStarted increments the active page gauge; the returned func decrements it.
func (c *Collector) PageStarted() func() {
	c.activePages.Add(1)
	return func() { c.activePages.Add(-1) }
}

// AssetStarted increments the active asset gauge; the returned func decrements it.
func (c *Collector) AssetStarted() func() {
	c.activeAssets.Add(1)
	return func() { c.activeAssets.Add(-1) }
}

// GetAverageResponseTime returns the average response time.
func (c *Collector) GetAverageResponseTime() time.Duration {
	sum := c.responseTimesSum.Load()
	num := c.responseTimesNum.Load()
	if num == 0 {
		return 0
	}
	return time.Duration(sum/num) * time.Millisecond
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := &Snapshot{
		Timestamp:           time.Now(),
		Uptime:              time.Since(c.startTime),
		RequestsTotal:       c.requestsTotal.Load(),
		RetriesTotal:        c.retriesTotal.Load(),
		ErrorsTotal:         c.errorsTotal.Load(),
		PagesSaved:          c.pagesSaved.Load(),
		AssetsSaved:         c.assetsSaved.Load(),
		Skipped:             c.skipped.Load(),
		SharedFetches:       c.sharedFetches.Load(),
		BytesFetched:        c.bytesFetched.Load(),
		BytesWritten:        c.bytesWritten.Load(),
		QueueDepth:          c.queueDepth.Load(),
		ActivePages:         c.activePages.Load(),
		ActiveAssets:        c.activeAssets.Load(),
		AverageResponseTime: c.GetAverageResponseTime(),
		ErrorCounts:         make(map[string]int64, len(c.errorCounts)),
		StatusCodes:         make(map[int]int64, len(c.statusCodes)),
		ResponseTimeHist:    make([]int64, len(c.responseBuckets)),
	}

	for k, v := range c.errorCounts {
		s.ErrorCounts[k] = v
	}
	for k, v := range c.statusCodes {
		s.StatusCodes[k] = v
	}
	for i := range c.responseBuckets {
		s.ResponseTimeHist[i] = c.responseBuckets[i].Load()
	}

	return s
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp           time.Time        `json:"timestamp"`
	Uptime              time.Duration    `json:"uptime"`
	RequestsTotal       int64            `json:"requests_total"`
	RetriesTotal        int64            `json:"retries_total"`
	ErrorsTotal         int64            `json:"errors_total"`
	PagesSaved          int64            `json:"pages_saved"`
	AssetsSaved         int64            `json:"assets_saved"`
	Skipped             int64            `json:"skipped"`
	SharedFetches       int64            `json:"shared_fetches"`
	BytesFetched        int64            `json:"bytes_fetched"`
	BytesWritten        int64            `json:"bytes_written"`
	QueueDepth          int64            `json:"queue_depth"`
	ActivePages         int64            `json:"active_pages"`
	ActiveAssets        int64            `json:"active_assets"`
	AverageResponseTime time.Duration    `json:"average_response_time"`
	ErrorCounts         map[string]int64 `json:"error_counts"`
	StatusCodes         map[int]int64    `json:"status_codes"`
	ResponseTimeHist    []int64          `json:"response_time_histogram"`
}

// ErrorRate returns the error rate (errors/requests).
func (s *Snapshot) ErrorRate() float64 {
	if s.RequestsTotal == 0 {
		return 0
	}
	return float64(s.ErrorsTotal) / float64(s.RequestsTotal)
}

// RequestsPerSecond returns the average request rate over the uptime.
func (s *Snapshot) RequestsPerSecond() float64 {
	if s.Uptime <= 0 {
		return 0
	}
	return float64(s.RequestsTotal) / s.Uptime.Seconds()
}

// Summary returns a flat map suitable for structured logging.
func (s *Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"uptime":               s.Uptime.Round(time.Millisecond).String(),
		"requests_total":       s.RequestsTotal,
		"retries_total":        s.RetriesTotal,
		"errors_total":         s.ErrorsTotal,
		"error_rate":           s.ErrorRate(),
		"pages_saved":          s.PagesSaved,
		"assets_saved":         s.AssetsSaved,
		"skipped":              s.Skipped,
		"bytes_written":        s.BytesWritten,
		"avg_response_time_ms": s.AverageResponseTime.Milliseconds(),
	}
}
