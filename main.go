package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adammathes/kvgverify/pkg/batch"
	"github.com/adammathes/kvgverify/pkg/config"
	"github.com/adammathes/kvgverify/pkg/kvg"
	"github.com/adammathes/kvgverify/pkg/report"
	"github.com/adammathes/kvgverify/pkg/validate"
)

const version = "0.1.0"

// Exit codes: 0=valid, 1=errors, 2=fatal
const (
	exitValid   = 0
	exitInvalid = 1
	exitFatal   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app holds the flag values and the components built from them.
type app struct {
	stdout, stderr io.Writer

	configPath  string
	logLevel    string
	jobs        int
	jsonOut     string
	metricsFile string
	color       string
	outputDir   string
	dryRun      bool

	cfg    *config.Config
	log    *slog.Logger
	engine *validate.Engine
	code   int
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Fatal: %v\n", err)
		return exitFatal
	}
	return a.code
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kvgverify",
		Short:         "Validate and repair KanjiVG stroke order diagrams",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "configuration file (default "+config.DefaultPath+" if present)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.IntVar(&a.jobs, "jobs", 0, "number of files processed in parallel")
	pf.StringVar(&a.jsonOut, "json", "", "write a JSON report to this file, or - for stdout")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	pf.StringVar(&a.color, "color", "auto", "colored text report: auto, always or never")

	repair := &cobra.Command{
		Use:   "repair [file or directory...]",
		Short: "Rewrite malformed ids in place",
		RunE:  a.runRepair,
	}
	repair.Flags().StringVar(&a.outputDir, "output-dir", "", "write repaired files here instead of overwriting them")
	repair.Flags().BoolVar(&a.dryRun, "dry-run", false, "print a diff instead of writing files")

	root.AddCommand(
		&cobra.Command{
			Use:   "validate [file or directory...]",
			Short: "Check diagrams against the enabled rules",
			RunE:  a.runValidate,
		},
		repair,
		&cobra.Command{
			Use:   "watch [directory]",
			Short: "Re-validate diagrams whenever they change",
			Args:  cobra.MaximumNArgs(1),
			RunE:  a.runWatch,
		},
		&cobra.Command{
			Use:   "rules",
			Short: "List the validation rules",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				for _, info := range validate.Catalog() {
					fmt.Fprintf(a.stdout, "%s  %-20s %s\n", info.CheckID, info.Rule, info.Description)
				}
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(a.stdout, "kvgverify %s\n", version)
			},
		},
	)
	return root
}

// setup loads the configuration, applies flag overrides and builds the
// logger and rule engine.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("jobs") {
		cfg.Jobs = a.jobs
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = a.metricsFile
	}
	if flags.Changed("output-dir") {
		cfg.Repair.OutputDir = a.outputDir
	}
	if flags.Changed("dry-run") {
		cfg.Repair.DryRun = a.dryRun
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch a.color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("invalid --color %q: expected auto, always or never", a.color)
	}

	a.cfg = cfg
	a.log = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	if a.engine, err = validate.NewEngine(cfg.Options()); err != nil {
		return err
	}
	return nil
}

// files resolves command arguments to diagram paths. Directories are
// scanned with the configured filters; named files are taken as given.
// Without arguments the configured directory is scanned. A path named
// more than once is kept once.
func (a *app) files(args []string) ([]string, error) {
	filter := batch.NewFilter(a.cfg.Files.Included, a.cfg.Files.Excluded)
	if len(args) == 0 {
		args = []string{a.cfg.Directory}
	}
	var files []string
	seen := map[string]bool{}
	add := func(path string) {
		if key := filepath.Clean(path); !seen[key] {
			seen[key] = true
			files = append(files, path)
		}
	}
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			add(arg)
			continue
		}
		found, err := batch.Discover(arg, filter)
		if err != nil {
			return nil, err
		}
		for _, path := range found {
			add(path)
		}
	}
	if len(files) == 0 {
		return nil, errors.New("no diagram files found")
	}
	return files, nil
}

func (a *app) runner(metrics *batch.Metrics) *batch.Runner {
	return &batch.Runner{Jobs: a.cfg.Jobs, Logger: a.log, Metrics: metrics}
}

func (a *app) runValidate(cmd *cobra.Command, args []string) error {
	if err := a.setup(cmd); err != nil {
		return err
	}
	files, err := a.files(args)
	if err != nil {
		return err
	}
	metrics := batch.NewMetrics()
	results, err := a.runner(metrics).Run(cmd.Context(), files, a.validateFile)
	if err != nil {
		return err
	}
	return a.finish(results, metrics)
}

func (a *app) validateFile(_ context.Context, path string) (*report.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	c := a.engine.Check(path, data)
	if c.Doc != nil {
		a.log.Debug("file parsed", "file", path, "kanji", c.Doc.Kanji(),
			"strokes", len(c.Doc.Strokes()), "summary", validate.Summary(c.Results))
	} else {
		a.log.Debug("parse failed", "file", path, "id", kvg.FileID(path), "error", c.ParseErr)
	}
	return c.Report, nil
}

// finish prints the combined report, writes the optional outputs and
// sets the exit code.
func (a *app) finish(results []batch.FileResult, metrics *batch.Metrics) error {
	merged := batch.Merge(results)
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(a.stderr, "Fatal: %v\n", res.Err)
		}
	}

	if a.useColor() {
		merged.WriteColorText(a.stderr)
	} else {
		merged.WriteText(a.stderr)
	}
	if err := a.writeJSON(merged); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	if a.cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	a.log.Info("check finished", "files", merged.Files, "errors", merged.ErrorCount(),
		"warnings", merged.WarningCount(), "fatal", merged.FatalCount()+failed)

	switch {
	case failed > 0 || merged.FatalCount() > 0:
		a.code = exitFatal
	case merged.ErrorCount() > 0:
		a.code = exitInvalid
	default:
		a.code = exitValid
	}
	return nil
}

func (a *app) useColor() bool {
	switch a.color {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := a.stderr.(*os.File)
	return ok && report.IsTerminal(f)
}

func (a *app) writeJSON(r *report.Report) error {
	switch a.jsonOut {
	case "":
		return nil
	case "-":
		return r.WriteJSON(a.stdout)
	}
	f, err := os.Create(a.jsonOut)
	if err != nil {
		return err
	}
	if err := r.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
