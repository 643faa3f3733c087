package batch

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adammathes/kvgverify/pkg/report"
)

// Task processes one file. A returned error is recorded for that file
// and does not stop the batch.
type Task func(ctx context.Context, path string) (*report.Report, error)

// FileResult is the outcome of a Task on one file.
type FileResult struct {
	Path     string
	Report   *report.Report
	Err      error
	Duration time.Duration
}

// Status classifies the result for logs and metrics.
func (r FileResult) Status() string {
	switch {
	case r.Err != nil:
		return "error"
	case r.Report == nil:
		return "skipped"
	case r.Report.FatalCount() > 0:
		return "fatal"
	case r.Report.ErrorCount() > 0:
		return "invalid"
	}
	return "valid"
}

// fatalChecks lists the distinct check ids of the FATAL messages in r.
// KVG-000 marks a parse failure; rules that could not be evaluated
// report under their own id.
func fatalChecks(r *report.Report) []string {
	var ids []string
	for _, m := range r.Messages {
		if m.Severity == report.Fatal && !slices.Contains(ids, m.CheckID) {
			ids = append(ids, m.CheckID)
		}
	}
	return ids
}

// Runner runs a Task over many files with bounded parallelism.
type Runner struct {
	// Jobs is the number of files processed at once. Values below 1
	// mean 1.
	Jobs    int
	Logger  *slog.Logger
	Metrics *Metrics
}

// Run applies task to every file and returns the results in the order of
// files. It stops starting new files when ctx is cancelled and then
// returns the context error with the results gathered so far.
func (r *Runner) Run(ctx context.Context, files []string, task Task) ([]FileResult, error) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	results := make([]FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Jobs, 1))
	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			rep, err := task(gctx, path)
			res := FileResult{Path: path, Report: rep, Err: err, Duration: time.Since(start)}
			results[i] = res

			switch res.Status() {
			case "error":
				log.Error("processing failed", "file", path, "error", err)
			case "fatal":
				log.Warn("fatal errors reported", "file", path, "checks", strings.Join(fatalChecks(rep), ","))
			case "invalid":
				log.Info("validation failed", "file", path, "errors", rep.ErrorCount())
			default:
				log.Debug("file checked", "file", path, "status", res.Status())
			}
			if r.Metrics != nil {
				r.Metrics.Observe(res)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// Merge combines the reports of results into one. Files that failed
// with an error count as processed but contribute no messages.
func Merge(results []FileResult) *report.Report {
	out := report.NewReport()
	for _, res := range results {
		if res.Report != nil {
			out.Merge(res.Report)
		} else if res.Err != nil {
			out.Files++
		}
	}
	return out
}
