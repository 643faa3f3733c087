// Package doctor implements a repair mode ("doctor") for stroke order
// diagrams that rewrites malformed ids in place.
//
// The approach:
//  1. Read the file and run the validator to identify problems
//  2. If any id rule failed, rescan the original text and replace only the
//     values of the mismatched id attributes
//  3. Write the repaired text (or print a diff on a dry run)
//  4. Re-validate the output to confirm the fixes worked
//
// Fixes (safe, deterministic, byte-preserving outside the edited values):
//   - KVG-003: stroke paths group id, kvg:StrokePaths_<file id>
//   - KVG-004: stroke numbers group id, kvg:StrokeNumbers_<file id>
//   - KVG-007: stroke group ids, numbered depth first
//   - KVG-008: stroke ids, numbered depth first
//
// Other failures (canvas, styles, stroke numbers) are reported but left
// alone.
package doctor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adammathes/kvgverify/pkg/kvg"
	"github.com/adammathes/kvgverify/pkg/report"
	"github.com/adammathes/kvgverify/pkg/validate"
)

// Fix represents a single applied fix.
type Fix struct {
	CheckID     string
	Description string
	File        string
	Offset      int64 // byte offset of the edited tag in the original text
	Drift       int64 // cumulative length change after this fix
}

// Result holds the outcome of a doctor run on one file.
type Result struct {
	File         string
	Kanji        string
	Fixes        []Fix
	Output       string // path written, empty when nothing was written
	Diff         string // unified diff of the changes, set on dry runs
	BeforeReport *report.Report
	AfterReport  *report.Report
}

// Changed reports whether any id was rewritten.
func (r *Result) Changed() bool { return len(r.Fixes) > 0 }

// Options configures where repaired files go.
type Options struct {
	// OutputDir receives repaired files under their original base name.
	// Empty means overwrite the input file.
	OutputDir string
	// DryRun computes fixes and a diff without writing anything.
	DryRun bool
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Doctor repairs diagram files. It is safe for concurrent use on
// different files.
type Doctor struct {
	engine *validate.Engine
	opts   Options
}

// New returns a Doctor that reports with engine.
func New(engine *validate.Engine, opts Options) *Doctor {
	opts.defaults()
	return &Doctor{engine: engine, opts: opts}
}

// Repair validates the file at path and rewrites its malformed ids. A
// file that cannot be parsed is not repaired; its parse failure is in
// BeforeReport.
func (d *Doctor) Repair(path string) (*Result, error) {
	log := d.opts.Logger.With("file", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	before, doc := d.engine.ValidateBytes(path, data)
	res := &Result{File: path, Kanji: "NA", BeforeReport: before, AfterReport: before}
	if doc == nil {
		log.Warn("parse failed, not repairing", "error", before.Messages[0].Message)
		return res, nil
	}
	res.Kanji = doc.Kanji()

	fileID := kvg.FileID(path)
	repaired, fixes, err := RepairIDs(fileID, doc, data)
	if err != nil {
		return nil, fmt.Errorf("repairing %s: %w", path, err)
	}
	if len(fixes) == 0 {
		log.Info("no changes required", "kanji", res.Kanji)
		return res, nil
	}
	for i := range fixes {
		fixes[i].File = path
		log.Debug("replaced id", "check", fixes[i].CheckID, "offset", fixes[i].Offset,
			"drift", fixes[i].Drift, "change", fixes[i].Description)
	}
	res.Fixes = fixes
	log.Info("repairing ids", "kanji", res.Kanji, "fixes", len(fixes))

	if d.opts.DryRun {
		if res.Diff, err = UnifiedDiff(filepath.Base(path), data, repaired); err != nil {
			return nil, fmt.Errorf("diffing %s: %w", path, err)
		}
		res.AfterReport, _ = d.engine.ValidateBytes(path, repaired)
		return res, nil
	}

	out := path
	if d.opts.OutputDir != "" {
		out = filepath.Join(d.opts.OutputDir, filepath.Base(path))
	}
	if err := writeFile(out, repaired); err != nil {
		return nil, fmt.Errorf("writing repaired %s: %w", out, err)
	}
	res.Output = out

	after, err := d.engine.ValidateFile(out)
	if err != nil {
		return nil, fmt.Errorf("validating repaired %s: %w", out, err)
	}
	res.AfterReport = after
	return res, nil
}
