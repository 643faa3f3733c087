package batch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adammathes/kvgverify/pkg/report"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFilterMatch(t *testing.T) {
	tests := []struct {
		included, excluded []string
		id                 string
		want               bool
	}{
		{[]string{"*"}, nil, "04e00", true},
		{[]string{"04e*"}, nil, "04e00", true},
		{[]string{"04e*"}, nil, "05e00", false},
		{[]string{"04e00"}, nil, "04e00-Kaisho", false},
		{[]string{"*"}, []string{"*-*"}, "04e00-Kaisho", false},
		{[]string{"*"}, []string{"*-*"}, "04e00", true},
		{[]string{"0.e00"}, nil, "04e00", false},
		{[]string{"0.e00"}, nil, "0.e00", true},
		{[]string{"a*", "*z"}, nil, "xyz", true},
		{nil, nil, "04e00", false},
	}
	for _, tt := range tests {
		f := NewFilter(tt.included, tt.excluded)
		assert.Equal(t, tt.want, f.Match(tt.id), "included %v excluded %v id %q", tt.included, tt.excluded, tt.id)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"04e00.svg", "04e01-Kaisho.svg", "sub/04e02.SVG", "sub/notes.txt", "05000.svg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "04e99.svg"), 0o755))

	files, err := Discover(dir, NewFilter([]string{"04*"}, []string{"*-Kaisho"}))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "04e00.svg"),
		filepath.Join(dir, "sub", "04e02.SVG"),
	}, files)

	_, err = Discover(filepath.Join(dir, "missing"), NewFilter([]string{"*"}, nil))
	assert.Error(t, err)
}

func reportWith(sev report.Severity, checkID string) *report.Report {
	r := report.NewReport()
	if sev != "" {
		r.Add(sev, checkID, "msg")
	}
	return r
}

func TestRunKeepsOrderAndRecordsErrors(t *testing.T) {
	files := []string{"a.svg", "b.svg", "c.svg", "d.svg", "e.svg"}
	var running, peak atomic.Int32
	task := func(_ context.Context, path string) (*report.Report, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		switch path {
		case "b.svg":
			return nil, errors.New("boom")
		case "c.svg":
			return reportWith(report.Error, "KVG-008"), nil
		case "d.svg":
			return reportWith(report.Fatal, "KVG-000"), nil
		}
		return reportWith("", ""), nil
	}

	metrics := NewMetrics()
	r := &Runner{Jobs: 2, Logger: quietLogger(), Metrics: metrics}
	results, err := r.Run(context.Background(), files, task)
	require.NoError(t, err)
	require.Len(t, results, len(files))

	var statuses []string
	for i, res := range results {
		assert.Equal(t, files[i], res.Path)
		statuses = append(statuses, res.Status())
	}
	assert.Equal(t, []string{"valid", "error", "invalid", "fatal", "valid"}, statuses)
	assert.LessOrEqual(t, peak.Load(), int32(2))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.files.WithLabelValues("valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.files.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.messages.WithLabelValues("ERROR", "KVG-008")))

	merged := Merge(results)
	assert.Equal(t, 5, merged.Files)
	assert.Equal(t, 1, merged.ErrorCount())
	assert.Equal(t, 1, merged.FatalCount())
}

func TestRunLogsFatalCheckIDs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	task := func(_ context.Context, path string) (*report.Report, error) {
		if path == "parse.svg" {
			return reportWith(report.Fatal, "KVG-000"), nil
		}
		r := reportWith(report.Fatal, "KVG-011")
		r.Add(report.Error, "KVG-001", "msg")
		return r, nil
	}

	r := &Runner{Jobs: 1, Logger: log}
	_, err := r.Run(context.Background(), []string{"parse.svg", "moveto.svg"}, task)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "file=parse.svg checks=KVG-000")
	assert.Contains(t, lines[1], `msg="fatal errors reported" file=moveto.svg checks=KVG-011`)
	assert.NotContains(t, buf.String(), "parse failed")
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	task := func(context.Context, string) (*report.Report, error) {
		if calls.Add(1) == 1 {
			cancel()
		}
		return report.NewReport(), nil
	}

	r := &Runner{Jobs: 1, Logger: quietLogger()}
	_, err := r.Run(ctx, []string{"a", "b", "c", "d"}, task)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, calls.Load(), int32(4))
}

func TestMetricsTextfile(t *testing.T) {
	m := NewMetrics()
	m.Observe(FileResult{Path: "x.svg", Report: reportWith(report.Warning, "KVG-011"), Duration: time.Millisecond})

	path := filepath.Join(t.TempDir(), "kvg.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(data)
	assert.True(t, strings.Contains(out, `kvgverify_files_total{status="valid"} 1`), out)
	assert.Contains(t, out, `kvgverify_messages_total{check_id="KVG-011",severity="WARNING"} 1`)
	assert.Contains(t, out, "kvgverify_file_duration_seconds_count 1")
}
