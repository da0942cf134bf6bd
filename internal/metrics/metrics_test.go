package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	c := New()
	if c == nil {
		t.Fatal("New() returned nil")
	}
	snap := c.Snapshot()
	if snap.RequestsTotal != 0 || len(snap.StatusCodes) != 0 {
		t.Error("new collector should be empty")
	}
}

func TestCollector_RecordResponse(t *testing.T) {
	c := New()

	c.RecordResponse(200, 100*time.Millisecond, 1000, 1)
	c.RecordResponse(200, 200*time.Millisecond, 500, 3)
	c.RecordResponse(404, 300*time.Millisecond, 0, 1)
	c.RecordResponse(0, 5*time.Millisecond, 0, 1)

	snap := c.Snapshot()
	if snap.RequestsTotal != 4 {
		t.Errorf("RequestsTotal = %d, want 4", snap.RequestsTotal)
	}
	if snap.RetriesTotal != 2 {
		t.Errorf("RetriesTotal = %d, want 2", snap.RetriesTotal)
	}
	if snap.BytesFetched != 1500 {
		t.Errorf("BytesFetched = %d, want 1500", snap.BytesFetched)
	}
	if snap.StatusCodes[200] != 2 || snap.StatusCodes[404] != 1 {
		t.Errorf("StatusCodes = %v", snap.StatusCodes)
	}
	if _, ok := snap.StatusCodes[0]; ok {
		t.Error("status 0 should not be recorded")
	}
}

func TestCollector_RecordError(t *testing.T) {
	c := New()

	c.RecordError("network")
	c.RecordError("network")
	c.RecordError("not_found")

	snap := c.Snapshot()
	if snap.ErrorsTotal != 3 {
		t.Errorf("ErrorsTotal = %d, want 3", snap.ErrorsTotal)
	}
	if snap.ErrorCounts["network"] != 2 {
		t.Errorf("ErrorCounts[network] = %d, want 2", snap.ErrorCounts["network"])
	}
	if snap.ErrorCounts["not_found"] != 1 {
		t.Errorf("ErrorCounts[not_found] = %d, want 1", snap.ErrorCounts["not_found"])
	}
}

func TestCollector_AverageResponseTime(t *testing.T) {
	c := New()

	c.RecordResponseTime(100 * time.Millisecond)
	c.RecordResponseTime(200 * time.Millisecond)
	c.RecordResponseTime(300 * time.Millisecond)

	if avg := c.GetAverageResponseTime().Milliseconds(); avg != 200 {
		t.Errorf("AverageResponseTime = %dms, want 200ms", avg)
	}
}

func TestBucket(t *testing.T) {
	tests := []struct {
		ms   int64
		want int
	}{
		{0, 0},
		{9, 0},
		{10, 1},
		{99, 2},
		{499, 4},
		{9999, 8},
		{10000, 9},
		{60000, 9},
	}

	for _, tt := range tests {
		if got := bucket(tt.ms); got != tt.want {
			t.Errorf("bucket(%d) = %d, want %d", tt.ms, got, tt.want)
		}
	}
}

func TestCollector_Saved(t *testing.T) {
	c := New()

	c.RecordPageSaved(100)
	c.RecordAssetSaved(50)
	c.RecordAssetSaved(25)
	c.RecordSkip()
	c.RecordSharedFetch()

	snap := c.Snapshot()
	if snap.PagesSaved != 1 || snap.AssetsSaved != 2 {
		t.Errorf("PagesSaved = %d, AssetsSaved = %d", snap.PagesSaved, snap.AssetsSaved)
	}
	if snap.BytesWritten != 175 {
		t.Errorf("BytesWritten = %d, want 175", snap.BytesWritten)
	}
	if snap.Skipped != 1 || snap.SharedFetches != 1 {
		t.Errorf("Skipped = %d, SharedFetches = %d", snap.Skipped, snap.SharedFetches)
	}
}

func TestCollector_Gauges(t *testing.T) {
	c := New()

	donePage := c.PageStarted()
	doneAsset := c.AssetStarted()
	c.AssetStarted()
	c.SetQueueDepth(7)

	snap := c.Snapshot()
	if snap.ActivePages != 1 || snap.ActiveAssets != 2 || snap.QueueDepth != 7 {
		t.Errorf("gauges = %d/%d/%d", snap.ActivePages, snap.ActiveAssets, snap.QueueDepth)
	}

	donePage()
	doneAsset()
	snap = c.Snapshot()
	if snap.ActivePages != 0 || snap.ActiveAssets != 1 {
		t.Errorf("after done gauges = %d/%d", snap.ActivePages, snap.ActiveAssets)
	}
}

func TestSnapshot_Rates(t *testing.T) {
	s := &Snapshot{RequestsTotal: 10, ErrorsTotal: 2, Uptime: 5 * time.Second}

	if got := s.ErrorRate(); got != 0.2 {
		t.Errorf("ErrorRate() = %v, want 0.2", got)
	}
	if got := s.RequestsPerSecond(); got != 2 {
		t.Errorf("RequestsPerSecond() = %v, want 2", got)
	}

	empty := &Snapshot{}
	if empty.ErrorRate() != 0 || empty.RequestsPerSecond() != 0 {
		t.Error("empty snapshot rates should be 0")
	}
}

func TestSnapshot_Summary(t *testing.T) {
	c := New()
	c.RecordPageSaved(10)

	summary := c.Snapshot().Summary()
	for _, key := range []string{"uptime", "requests_total", "pages_saved", "assets_saved", "bytes_written"} {
		if _, ok := summary[key]; !ok {
			t.Errorf("Summary() missing %q", key)
		}
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.RecordResponse(200+i%2, time.Millisecond, 1, 1)
			c.RecordError("network")
			_ = c.Snapshot()
		}(i)
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.RequestsTotal != 50 || snap.ErrorsTotal != 50 {
		t.Errorf("RequestsTotal = %d, ErrorsTotal = %d", snap.RequestsTotal, snap.ErrorsTotal)
	}
	if snap.StatusCodes[200]+snap.StatusCodes[201] != 50 {
		t.Errorf("StatusCodes = %v", snap.StatusCodes)
	}
}
