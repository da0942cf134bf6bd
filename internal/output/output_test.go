package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	crawlerrors "github.com/PentesterFlow/OpenMirror/internal/errors"
)

// mockCloser implements io.Writer with Close support
type mockCloser struct {
	bytes.Buffer
	closed bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return nil
}

// mockWriteError simulates write errors
type mockWriteError struct {
	err error
}

func (m *mockWriteError) Write(p []byte) (n int, err error) {
	return 0, m.err
}

// =============================================================================
// Report Tests
// =============================================================================

func TestNewReport(t *testing.T) {
	files := map[string]string{
		"https://example.com/":          "index.html",
		"https://example.com/style.css": "style.css",
	}
	r := NewReport("https://example.com/", 1,
		[]string{"https://example.com/z", "https://example.com/"}, files)

	if r.BaseURL != "https://example.com" {
		t.Errorf("BaseURL = %q", r.BaseURL)
	}
	if r.TotalPages != 1 || r.TotalFiles != 2 {
		t.Errorf("TotalPages = %d, TotalFiles = %d", r.TotalPages, r.TotalFiles)
	}
	if r.VisitedURLs[0] != "https://example.com/" {
		t.Errorf("VisitedURLs not sorted: %v", r.VisitedURLs)
	}
}

func TestNewReport_EmptyFiles(t *testing.T) {
	r := NewReport("https://example.com", 0, nil, nil)

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"downloaded_files":{}`) {
		t.Errorf("downloaded_files should be an empty object: %s", data)
	}
}

// =============================================================================
// Root Tests
// =============================================================================

func TestEnsureRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	root, err := EnsureRoot(dir)
	if err != nil {
		t.Fatalf("EnsureRoot() error = %v", err)
	}
	if root.Dir() != dir {
		t.Errorf("Dir() = %q", root.Dir())
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Error("directory not created")
	}
}

func TestEnsureRoot_Errors(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, dir := range []string{"", file, filepath.Join(file, "sub")} {
		_, err := EnsureRoot(dir)
		if err == nil {
			t.Errorf("EnsureRoot(%q) should fail", dir)
			continue
		}
		if crawlerrors.GetErrorType(err) != crawlerrors.OutputDir {
			t.Errorf("EnsureRoot(%q) type = %v", dir, crawlerrors.GetErrorType(err))
		}
	}
}

func TestRoot_WriteRead(t *testing.T) {
	root, err := EnsureRoot(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := root.Write("https://example.com/css/a.css", "css/a.css", []byte("body{}")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, err := root.Read("css/a.css")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(data) != "body{}" {
		t.Errorf("Read() = %q", data)
	}
}

func TestRoot_PathEscape(t *testing.T) {
	root, err := EnsureRoot(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, rel := range []string{"../x", "..", "/etc/passwd", "", "a/../../x"} {
		err := root.Write("https://example.com/", rel, []byte("x"))
		if crawlerrors.GetErrorType(err) != crawlerrors.Write {
			t.Errorf("Write(%q) error = %v, want write error", rel, err)
		}
	}
}

func TestRoot_WriteConflict(t *testing.T) {
	root, err := EnsureRoot(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := root.Write("u", "a", []byte("file")); err != nil {
		t.Fatal(err)
	}

	err = root.Write("u", "a/b.css", []byte("x"))
	if crawlerrors.GetErrorType(err) != crawlerrors.Write {
		t.Errorf("error = %v, want write error", err)
	}
}

func TestRoot_WriteReport(t *testing.T) {
	root, err := EnsureRoot(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	report := NewReport("https://example.com/", 1,
		[]string{"https://example.com/"}, map[string]string{"https://example.com/": "index.html"})

	if err := root.WriteReport("", report); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root.Dir(), ReportName))
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"base_url", "total_pages", "total_files", "visited_urls", "downloaded_files"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("report missing %q", key)
		}
	}
}

// =============================================================================
// Writer Tests
// =============================================================================

func sampleSummary() *Summary {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &Summary{
		Target:      "https://example.com",
		OutputDir:   "example.com",
		StartedAt:   start,
		CompletedAt: start.Add(2 * time.Second),
		Duration:    2 * time.Second,
		Statistics:  Statistics{PagesSaved: 2, AssetsSaved: 3, Failures: 1},
		StatusCodes: map[int]int{200: 5, 404: 1},
		Errors:      []ErrorLine{{URL: "https://example.com/x.png", Type: "not_found", Message: "HTTP 404"}},
	}
}

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer
	if _, ok := NewWriter(&buf, Config{Format: "json"}).(*JSONWriter); !ok {
		t.Error("json format should produce JSONWriter")
	}
	if _, ok := NewWriter(&buf, Config{Format: "text"}).(*TextWriter); !ok {
		t.Error("text format should produce TextWriter")
	}
	if _, ok := NewWriter(&buf, Config{}).(*JSONWriter); !ok {
		t.Error("default format should produce JSONWriter")
	}
}

func TestJSONWriter_WriteSummary(t *testing.T) {
	tests := []struct {
		name   string
		pretty bool
	}{
		{"compact", false},
		{"pretty", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			jw := NewJSONWriter(&buf, tt.pretty)

			if err := jw.WriteSummary(sampleSummary()); err != nil {
				t.Fatalf("WriteSummary() error = %v", err)
			}

			var decoded Summary
			if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if decoded.Statistics.PagesSaved != 2 {
				t.Errorf("PagesSaved = %d", decoded.Statistics.PagesSaved)
			}
			if tt.pretty != strings.Contains(buf.String(), "\n  ") {
				t.Errorf("pretty = %v but output %q", tt.pretty, buf.String())
			}
		})
	}
}

func TestJSONWriter_Closed(t *testing.T) {
	mc := &mockCloser{}
	jw := NewJSONWriter(mc, false)

	if err := jw.Close(); err != nil {
		t.Fatal(err)
	}
	if !mc.closed {
		t.Error("underlying writer not closed")
	}
	if err := jw.WriteReport(NewReport("https://example.com", 0, nil, nil)); err != nil {
		t.Errorf("write after close error = %v", err)
	}
	if mc.Len() != 0 {
		t.Error("write after close should be dropped")
	}
}

func TestJSONWriter_WriteError(t *testing.T) {
	want := errors.New("disk full")
	jw := NewJSONWriter(&mockWriteError{err: want}, false)

	if err := jw.WriteSummary(sampleSummary()); !errors.Is(err, want) {
		t.Errorf("error = %v, want %v", err, want)
	}
}

func TestTextWriter_WriteSummary(t *testing.T) {
	var buf bytes.Buffer
	tw := NewTextWriter(&buf)

	s := sampleSummary()
	s.Interrupted = true
	if err := tw.WriteSummary(s); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"Mirror Summary", "Pages:      2", "200: 5", "404: 1", "[not_found]", "Interrupted"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "200: 5") > strings.Index(out, "404: 1") {
		t.Error("status codes not sorted")
	}
}

func TestTextWriter_WriteReport(t *testing.T) {
	var buf bytes.Buffer
	tw := NewTextWriter(&buf)

	r := NewReport("https://example.com/", 2, []string{"a", "b"}, map[string]string{"a": "a.html"})
	if err := tw.WriteReport(r); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "Mirrored https://example.com: 2 pages, 1 files, 2 URLs visited\n" {
		t.Errorf("WriteReport() = %q", got)
	}
}
