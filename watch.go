package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adammathes/kvgverify/pkg/batch"
	"github.com/adammathes/kvgverify/pkg/kvg"
	"github.com/adammathes/kvgverify/pkg/watch"
)

func (a *app) runWatch(cmd *cobra.Command, args []string) error {
	if err := a.setup(cmd); err != nil {
		return err
	}
	dir := a.cfg.Directory
	if len(args) == 1 {
		dir = args[0]
	}
	ctx := cmd.Context()

	// Report the current state once before waiting for changes.
	files, err := a.files([]string{dir})
	if err != nil {
		return err
	}
	metrics := batch.NewMetrics()
	results, err := a.runner(metrics).Run(ctx, files, a.validateFile)
	if err != nil {
		return err
	}
	if err := a.finish(results, metrics); err != nil {
		return err
	}

	filter := batch.NewFilter(a.cfg.Files.Included, a.cfg.Files.Excluded)
	w, err := watch.New(dir, watch.Options{
		Logger: a.log,
		Match: func(path string) bool {
			return filter.Match(kvg.FileID(path)) && isDiagram(path)
		},
	})
	if err != nil {
		return err
	}
	return w.Run(ctx, func(paths []string) {
		results, err := a.runner(metrics).Run(ctx, paths, a.validateFile)
		if err != nil {
			return
		}
		if err := a.finish(results, metrics); err != nil {
			a.log.Error("reporting failed", "error", err)
		}
	})
}

func isDiagram(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".svg")
}
