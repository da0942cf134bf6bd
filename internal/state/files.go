package state

import "sync"

// Files is the downloaded-files table: canonical URL to local path.
// Writers hold the lock exclusively; readers see a consistent view.
type Files struct {
	mu    sync.RWMutex
	paths map[string]string
}

// NewFiles creates an empty table.
func NewFiles() *Files {
	return &Files{paths: make(map[string]string)}
}

// Put records path for canonical. An existing entry is kept; the return
// value reports whether the entry was added.
func (f *Files) Put(canonical, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.paths[canonical]; exists {
		return false
	}
	f.paths[canonical] = path
	return true
}

// Lookup returns the local path saved for canonical.
func (f *Files) Lookup(canonical string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.paths[canonical]
	return p, ok
}

// Len returns the number of entries.
func (f *Files) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.paths)
}

// Snapshot returns a copy of the table.
func (f *Files) Snapshot() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]string, len(f.paths))
	for k, v := range f.paths {
		out[k] = v
	}
	return out
}
