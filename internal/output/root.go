package output

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/PentesterFlow/OpenMirror/internal/errors"
)

// Root is the mirror root directory.
type Root struct {
	dir string
}

// EnsureRoot creates dir if needed and returns it as a mirror root.
func EnsureRoot(dir string) (*Root, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.NewOutputDirError(dir, nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewOutputDirError(dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.NewOutputDirError(dir, err)
	}
	if !info.IsDir() {
		return nil, errors.NewOutputDirError(dir, nil)
	}
	return &Root{dir: dir}, nil
}

// Dir returns the root directory.
func (r *Root) Dir() string {
	return r.dir
}

// Path returns the filesystem path of a local path under the root.
func (r *Root) Path(rel string) (string, bool) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.Join(r.dir, clean), true
}

// Write stores data at the local path rel, creating parent directories.
// url is used for error reporting only.
func (r *Root) Write(url, rel string, data []byte) error {
	p, ok := r.Path(rel)
	if !ok {
		return errors.NewWriteError(url, rel, nil)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.NewWriteError(url, rel, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return errors.NewWriteError(url, rel, err)
	}
	return nil
}

// Read returns the content stored at rel.
func (r *Root) Read(rel string) ([]byte, error) {
	p, ok := r.Path(rel)
	if !ok {
		return nil, errors.NewWriteError("", rel, nil)
	}
	return os.ReadFile(p)
}

// WriteReport writes report as indented JSON at name under the root.
func (r *Root) WriteReport(name string, report *Report) error {
	if name == "" {
		name = ReportName
	}
	data, err := marshal(report, true)
	if err != nil {
		return errors.NewWriteError(report.BaseURL, name, err)
	}
	return r.Write(report.BaseURL, name, append(data, '\n'))
}
