package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newBufferLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Pretty: false, Output: &buf}), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("output is not JSON: %q (%v)", line, err)
	}
	return m
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != InfoLevel {
		t.Errorf("Level = %v, want InfoLevel", cfg.Level)
	}
	if !cfg.Pretty {
		t.Error("Pretty should be true by default")
	}
	if cfg.Output == nil {
		t.Error("Output should not be nil")
	}
}

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: InfoLevel, Output: &buf, Component: "mirror"})

	l.Info("hello")

	m := decodeLine(t, &buf)
	if m["component"] != "mirror" {
		t.Errorf("component = %v, want mirror", m["component"])
	}
	if m["message"] != "hello" {
		t.Errorf("message = %v, want hello", m["message"])
	}
}

func TestLogger_Fields(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)

	l.WithURL("https://example.com/").WithWorker(3).WithField("depth", 2).Infof("page %d", 1)

	m := decodeLine(t, buf)
	if m["url"] != "https://example.com/" {
		t.Errorf("url = %v", m["url"])
	}
	if m["worker_id"] != float64(3) {
		t.Errorf("worker_id = %v", m["worker_id"])
	}
	if m["depth"] != float64(2) {
		t.Errorf("depth = %v", m["depth"])
	}
	if m["message"] != "page 1" {
		t.Errorf("message = %v", m["message"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(WarnLevel)

	l.Info("hidden")
	l.Debugf("hidden too")
	if buf.Len() != 0 {
		t.Errorf("info/debug should be filtered at warn level: %s", buf.String())
	}

	l.Warnf("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("warn should be written")
	}

	buf.Reset()
	l.SetLevel(DebugLevel)
	l.Debugf("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("debug should be written after SetLevel")
	}
}

func TestLogger_Events(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel)

	l.SavedEvent("https://example.com/a.css", "a.css", "stylesheet", 42)
	m := decodeLine(t, buf)
	if m["path"] != "a.css" || m["kind"] != "stylesheet" || m["bytes"] != float64(42) {
		t.Errorf("SavedEvent fields = %v", m)
	}

	buf.Reset()
	l.SkipEvent(errors.New("boom"), "https://example.com/x.png", "fetch_asset")
	m = decodeLine(t, buf)
	if m["level"] != "warn" || m["error"] != "boom" || m["operation"] != "fetch_asset" {
		t.Errorf("SkipEvent fields = %v", m)
	}

	buf.Reset()
	l.FetchEvent("https://example.com/", 200, 15*time.Millisecond)
	m = decodeLine(t, buf)
	if m["status_code"] != float64(200) {
		t.Errorf("FetchEvent fields = %v", m)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Errorf("nothing %s", "here")
	l.StatsEvent(map[string]interface{}{"pages": 1})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"info", InfoLevel, false},
		{"warn", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v", tt.in, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
