package output

import (
	"sort"
	"strings"
	"time"
)

// ReportName is the default file name of the report at the mirror root.
const ReportName = "extraction_report.json"

// Report is the JSON summary written at the mirror root.
type Report struct {
	BaseURL         string            `json:"base_url"`
	TotalPages      int               `json:"total_pages"`
	TotalFiles      int               `json:"total_files"`
	VisitedURLs     []string          `json:"visited_urls"`
	DownloadedFiles map[string]string `json:"downloaded_files"`
}

// NewReport builds a report. The visited list is sorted and the base URL
// loses its trailing slash.
func NewReport(baseURL string, pages int, visited []string, files map[string]string) *Report {
	v := append([]string(nil), visited...)
	sort.Strings(v)
	if files == nil {
		files = map[string]string{}
	}
	return &Report{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		TotalPages:      pages,
		TotalFiles:      len(files),
		VisitedURLs:     v,
		DownloadedFiles: files,
	}
}

// Summary is the end-of-run summary printed by the CLI.
type Summary struct {
	Target      string        `json:"target"`
	OutputDir   string        `json:"output_dir"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
	Statistics  Statistics    `json:"statistics"`
	StatusCodes map[int]int   `json:"status_codes,omitempty"`
	Errors      []ErrorLine   `json:"errors,omitempty"`
	Interrupted bool          `json:"interrupted,omitempty"`
}

// Statistics holds per-run counters.
type Statistics struct {
	PagesSaved   int   `json:"pages_saved"`
	AssetsSaved  int   `json:"assets_saved"`
	Failures     int   `json:"failures"`
	Skipped      int   `json:"skipped"`
	BytesWritten int64 `json:"bytes_written"`
	Requests     int64 `json:"requests"`
}

// ErrorLine is one recovered error in a summary.
type ErrorLine struct {
	URL       string `json:"url"`
	Type      string `json:"type"`
	Operation string `json:"operation,omitempty"`
	Message   string `json:"message"`
}
