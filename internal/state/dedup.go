package state

import (
	"sort"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Deduplicator is a set of URLs backed by a Bloom filter with an exact map
// behind it for false positives.
type Deduplicator struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

// NewDeduplicator creates a new deduplicator.
func NewDeduplicator(estimatedItems int) *Deduplicator {
	if estimatedItems < 1000 {
		estimatedItems = 1000
	}

	return &Deduplicator{
		filter: bloom.NewWithEstimates(uint(estimatedItems), 0.001),
		exact:  make(map[string]struct{}),
	}
}

// TryAdd adds url and reports whether it was new. The check and the insert
// happen under one lock, so concurrent callers admit a URL at most once.
func (d *Deduplicator) TryAdd(url string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.filter.TestString(url) {
		if _, exists := d.exact[url]; exists {
			return false
		}
	}
	d.filter.AddString(url)
	d.exact[url] = struct{}{}
	return true
}

// HasSeen checks if a URL has been added.
func (d *Deduplicator) HasSeen(url string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.filter.TestString(url) {
		return false
	}
	_, exists := d.exact[url]
	return exists
}

// Count returns the number of unique URLs.
func (d *Deduplicator) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.exact)
}

// GetAll returns all URLs in sorted order.
func (d *Deduplicator) GetAll() []string {
	d.mu.RLock()
	urls := make([]string, 0, len(d.exact))
	for url := range d.exact {
		urls = append(urls, url)
	}
	d.mu.RUnlock()

	sort.Strings(urls)
	return urls
}

// Reset empties the set.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.filter.ClearAll()
	d.exact = make(map[string]struct{})
}
