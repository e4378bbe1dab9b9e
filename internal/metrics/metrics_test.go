package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", 200, time.Millisecond)
	m.ObserveRetry("GET", "transient")
	m.ObserveStep("upload", true, time.Second)
	m.ObserveRun("ucrt64", "success")
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Fatalf("WriteTextfile on nil: %v", err)
	}
	if m.Registry() != nil {
		t.Error("nil metrics should have nil registry")
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveRequest("PATCH", 200, 30*time.Millisecond)
	m.ObserveRequest("POST", 0, time.Second)
	m.ObserveRetry("POST", "transient")
	m.ObserveStep("rename-new", true, 10*time.Millisecond)
	m.ObserveRun("ucrt64", "success")

	path := filepath.Join(t.TempDir(), "msys2pkg.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	text := string(data)

	for _, want := range []string{
		`msys2pkg_api_requests_total{method="PATCH",status="200"} 1`,
		`msys2pkg_api_requests_total{method="POST",status="error"} 1`,
		`msys2pkg_api_retries_total{method="POST",reason="transient"} 1`,
		`msys2pkg_runs_total{outcome="success",package="ucrt64"} 1`,
		`msys2pkg_step_duration_seconds_count{result="ok",step="rename-new"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}
