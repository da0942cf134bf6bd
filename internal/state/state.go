// Package state holds the shared crawl state of one mirror run: the visited
// set, the downloaded-files table, failures and counters.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/PentesterFlow/OpenMirror/internal/errors"
)

// Manager owns the state of a single run.
type Manager struct {
	store   Store
	visited *Deduplicator
	files   *Files

	mu        sync.Mutex
	pages     map[string]struct{}
	failed    map[string]string
	pending   map[string]struct{}
	restyle   map[string]struct{}
	errs      []ErrorRecord
	stats     Stats
	startTime time.Time
}

// NewManager creates a new state manager. store may be nil.
func NewManager(store Store, estimatedURLs int) *Manager {
	return &Manager{
		store:     store,
		visited:   NewDeduplicator(estimatedURLs),
		files:     NewFiles(),
		pages:     make(map[string]struct{}),
		failed:    make(map[string]string),
		pending:   make(map[string]struct{}),
		restyle:   make(map[string]struct{}),
		startTime: time.Now(),
	}
}

// TryVisit marks a page URL visited and reports whether this caller won.
func (m *Manager) TryVisit(canonical string) bool {
	return m.visited.TryAdd(canonical)
}

// HasVisited checks if a page URL has been visited.
func (m *Manager) HasVisited(canonical string) bool {
	return m.visited.HasSeen(canonical)
}

// VisitedURLs returns the visited set in sorted order.
func (m *Manager) VisitedURLs() []string {
	return m.visited.GetAll()
}

// VisitedCount returns the size of the visited set.
func (m *Manager) VisitedCount() int {
	return m.visited.Count()
}

// Files returns the downloaded-files table.
func (m *Manager) Files() *Files {
	return m.files
}

// Lookup returns the local path saved for canonical.
func (m *Manager) Lookup(canonical string) (string, bool) {
	return m.files.Lookup(canonical)
}

// RecordFile adds a saved file to the table and counters. It reports
// whether the entry was added; an existing entry for canonical wins and the
// file is not counted again.
func (m *Manager) RecordFile(canonical, path string, isPage bool, size int) bool {
	added := m.files.Put(canonical, path)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.BytesWritten += int64(size)
	if !added {
		return false
	}
	if isPage {
		m.pages[canonical] = struct{}{}
		m.stats.PagesSaved++
	} else {
		m.stats.AssetsSaved++
	}
	return true
}

// PageCount returns the number of saved HTML pages.
func (m *Manager) PageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pages)
}

// MarkFailed records a failed fetch or write for canonical.
func (m *Manager) MarkFailed(canonical string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failed[canonical] = err.Error()
	m.stats.Failures++
	m.errs = append(m.errs, newRecord(canonical, err))
}

// IsFailed reports whether canonical already failed in this run.
func (m *Manager) IsFailed(canonical string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.failed[canonical]
	return ok
}

// RecordSkip records a recovered error that did not lose the item.
func (m *Manager) RecordSkip(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Skipped++
	m.errs = append(m.errs, newRecord(url, err))
}

// NotePending marks a saved page as holding anchors to unsaved targets.
func (m *Manager) NotePending(pageCanonical string) {
	m.mu.Lock()
	m.pending[pageCanonical] = struct{}{}
	m.mu.Unlock()
}

// NotePendingStylesheet marks a saved stylesheet whose children were still
// downloading when it was rewritten.
func (m *Manager) NotePendingStylesheet(cssCanonical string) {
	m.mu.Lock()
	m.restyle[cssCanonical] = struct{}{}
	m.mu.Unlock()
}

// TakePending returns and clears the pages awaiting a relink, sorted.
func (m *Manager) TakePending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := sortedKeys(m.pending)
	m.pending = make(map[string]struct{})
	return out
}

// TakePendingStylesheets returns and clears the stylesheets awaiting a
// second rewrite, sorted.
func (m *Manager) TakePendingStylesheets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := sortedKeys(m.restyle)
	m.restyle = make(map[string]struct{})
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Errors returns the recovered errors in the order they happened.
func (m *Manager) Errors() []ErrorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ErrorRecord(nil), m.errs...)
}

// GetStats returns the current statistics.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.stats
	stats.Duration = time.Since(m.startTime)
	return stats
}

// Snapshot captures the current state.
func (m *Manager) Snapshot(target, outputDir string, finished bool) *Snapshot {
	return &Snapshot{
		Target:      target,
		OutputDir:   outputDir,
		StartedAt:   m.startTime,
		Finished:    finished,
		Stats:       m.GetStats(),
		VisitedURLs: m.VisitedURLs(),
		Files:       m.files.Snapshot(),
		Errors:      m.Errors(),
	}
}

// Save persists a snapshot if a store is configured.
func (m *Manager) Save(snap *Snapshot) error {
	if m.store == nil {
		return nil
	}
	snap.UpdatedAt = time.Now()
	return m.store.Save(snap)
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}

func newRecord(url string, err error) ErrorRecord {
	return ErrorRecord{
		URL:       url,
		Type:      errors.GetErrorType(err).String(),
		Operation: errors.GetOperation(err),
		Message:   err.Error(),
		Timestamp: time.Now(),
	}
}
