package queue

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Frontier Tests
// =============================================================================

func TestFrontier_Order(t *testing.T) {
	f := NewFrontier()

	f.Push(&Item{URL: "https://example.com/deep", Depth: 2})
	f.Push(&Item{URL: "https://example.com/a", Depth: 1})
	f.Push(&Item{URL: "https://example.com/", Depth: 0})
	f.Push(&Item{URL: "https://example.com/b", Depth: 1})

	want := []string{
		"https://example.com/",
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/deep",
	}

	for _, w := range want {
		item, err := f.Pop()
		if err != nil {
			t.Fatalf("Pop() error = %v", err)
		}
		if item.URL != w {
			t.Errorf("Pop() = %s, want %s", item.URL, w)
		}
		if item.Timestamp.IsZero() {
			t.Error("Push() should stamp the item")
		}
		f.Done()
	}

	if _, err := f.Pop(); err != ErrDrained {
		t.Errorf("Pop() on drained frontier error = %v, want ErrDrained", err)
	}
}

func TestFrontier_EmptyIsDrained(t *testing.T) {
	f := NewFrontier()
	if _, err := f.Pop(); err != ErrDrained {
		t.Errorf("Pop() error = %v, want ErrDrained", err)
	}
}

func TestFrontier_WaitsForInProgress(t *testing.T) {
	f := NewFrontier()
	f.Push(&Item{URL: "https://example.com/"})

	first, _ := f.Pop()
	if f.Outstanding() != 1 {
		t.Fatalf("Outstanding() = %d, want 1", f.Outstanding())
	}

	got := make(chan string, 1)
	go func() {
		item, err := f.Pop()
		if err != nil {
			got <- err.Error()
			return
		}
		got <- item.URL
		f.Done()
	}()

	select {
	case v := <-got:
		t.Fatalf("Pop() returned %q while work was in progress", v)
	case <-time.After(20 * time.Millisecond):
	}

	f.Push(&Item{URL: "https://example.com/child", Depth: first.Depth + 1, ParentURL: first.URL})
	f.Done()

	select {
	case v := <-got:
		if v != "https://example.com/child" {
			t.Errorf("waiter got %q", v)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Push")
	}
}

func TestFrontier_DoneWakesWaiters(t *testing.T) {
	f := NewFrontier()
	f.Push(&Item{URL: "https://example.com/"})
	f.Pop()

	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := f.Pop()
			errs <- err
		}()
	}

	time.Sleep(10 * time.Millisecond)
	f.Done()

	for i := 0; i < 3; i++ {
		select {
		case err := <-errs:
			if err != ErrDrained {
				t.Errorf("waiter error = %v, want ErrDrained", err)
			}
		case <-time.After(time.Second):
			t.Fatal("waiters were not released on drain")
		}
	}
}

func TestFrontier_Close(t *testing.T) {
	f := NewFrontier()
	f.Push(&Item{URL: "https://example.com/"})
	f.Pop()

	done := make(chan error, 1)
	go func() {
		_, err := f.Pop()
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	f.Close()

	select {
	case err := <-done:
		if err != ErrQueueClosed {
			t.Errorf("Pop() after Close error = %v, want ErrQueueClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the waiter")
	}

	if err := f.Push(&Item{URL: "https://example.com/x"}); err != ErrQueueClosed {
		t.Errorf("Push() after Close error = %v, want ErrQueueClosed", err)
	}
}

func TestFrontier_ConcurrentWorkers(t *testing.T) {
	f := NewFrontier()
	f.Push(&Item{URL: "n0", Depth: 0})

	var mu sync.Mutex
	seen := make(map[string]int)

	// Each item below depth 3 spawns two children: 1 + 2 + 4 + 8 items.
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := f.Pop()
				if err != nil {
					return
				}
				mu.Lock()
				seen[item.URL]++
				mu.Unlock()
				if item.Depth < 3 {
					for c := 0; c < 2; c++ {
						f.Push(&Item{URL: fmt.Sprintf("%s.%d", item.URL, c), Depth: item.Depth + 1})
					}
				}
				f.Done()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 15 {
		t.Errorf("processed %d items, want 15", len(seen))
	}
	for u, n := range seen {
		if n != 1 {
			t.Errorf("%s processed %d times", u, n)
		}
	}
	if f.Outstanding() != 0 || f.Len() != 0 {
		t.Errorf("Outstanding() = %d, Len() = %d after drain", f.Outstanding(), f.Len())
	}
}
