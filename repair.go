package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/adammathes/kvgverify/pkg/batch"
	"github.com/adammathes/kvgverify/pkg/doctor"
	"github.com/adammathes/kvgverify/pkg/report"
)

func (a *app) runRepair(cmd *cobra.Command, args []string) error {
	if err := a.setup(cmd); err != nil {
		return err
	}
	files, err := a.files(args)
	if err != nil {
		return err
	}
	if dir := a.cfg.Repair.OutputDir; dir != "" {
		if err := distinctOutputs(files, dir); err != nil {
			return err
		}
	}
	dr := doctor.New(a.engine, doctor.Options{
		OutputDir: a.cfg.Repair.OutputDir,
		DryRun:    a.cfg.Repair.DryRun,
		Logger:    a.log,
	})

	var mu sync.Mutex
	repaired := map[string]*doctor.Result{}
	task := func(_ context.Context, path string) (*report.Report, error) {
		res, err := dr.Repair(path)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		repaired[path] = res
		mu.Unlock()
		return res.AfterReport, nil
	}

	metrics := batch.NewMetrics()
	results, err := a.runner(metrics).Run(cmd.Context(), files, task)
	if err != nil {
		return err
	}

	changed, fixes := 0, 0
	for _, path := range files {
		res := repaired[path]
		if res == nil || !res.Changed() {
			continue
		}
		changed++
		fixes += len(res.Fixes)
		if res.Diff != "" {
			fmt.Fprint(a.stdout, res.Diff)
		}
		for _, f := range res.Fixes {
			fmt.Fprintf(a.stderr, "Fixed %s: %s [%s]\n", f.CheckID, f.Description, f.File)
		}
	}
	verb := "Repaired"
	if a.cfg.Repair.DryRun {
		verb = "Would repair"
	}
	fmt.Fprintf(a.stderr, "%s %d of %d files (%d ids).\n", verb, changed, len(files), fixes)
	return a.finish(results, metrics)
}

// distinctOutputs fails when two files would be written to the same
// path in dir.
func distinctOutputs(files []string, dir string) error {
	written := map[string]string{}
	for _, path := range files {
		out := filepath.Join(dir, filepath.Base(path))
		if prev, ok := written[out]; ok {
			return fmt.Errorf("%s and %s would both be written to %s", prev, path, out)
		}
		written[out] = path
	}
	return nil
}
