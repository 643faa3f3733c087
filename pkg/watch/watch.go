// Package watch reports diagram files that change under a directory tree.
//
// Events are collected until the tree has been quiet for the debounce
// window and then delivered as one sorted batch:
//
//	w, err := watch.New(dir, watch.Options{Debounce: 250 * time.Millisecond})
//	go w.Run(ctx, func(paths []string) { revalidate(paths) })
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Options tunes the watcher behaviour.
type Options struct {
	// Debounce is the quiet period after the last event before a batch
	// is delivered. Default: 200ms.
	Debounce time.Duration
	// Match selects the files to report. Default: every .svg file.
	Match func(path string) bool
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Debounce <= 0 {
		o.Debounce = 200 * time.Millisecond
	}
	if o.Match == nil {
		o.Match = func(path string) bool {
			return strings.EqualFold(filepath.Ext(path), ".svg")
		}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher watches a directory tree. New directories are added as they
// appear.
type Watcher struct {
	dir  string
	opts Options
	fsw  *fsnotify.Watcher
}

// New starts watching dir and every directory below it.
func New(dir string, opts Options) (*Watcher, error) {
	opts.defaults()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{dir: dir, opts: opts, fsw: fsw}
	if err := w.addTree(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// Run blocks until ctx is cancelled, calling onChange with the files
// written or created since the previous call. The watcher is closed when
// Run returns.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	defer w.fsw.Close()
	log := w.opts.Logger

	pending := map[string]bool{}
	var debounce *time.Timer
	var debounceCh <-chan time.Time

	log.Info("watch: started", "dir", w.dir, "debounce", w.opts.Debounce)
	for {
		select {
		case <-ctx.Done():
			log.Info("watch: stopped")
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						log.Warn("watch: cannot follow new directory", "dir", ev.Name, "error", err)
					}
					continue
				}
			}
			if !w.opts.Match(ev.Name) {
				continue
			}
			pending[ev.Name] = true
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(w.opts.Debounce)
			debounceCh = debounce.C
			log.Debug("watch: change detected, debouncing", "file", ev.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch: error", "error", err)

		case <-debounceCh:
			debounceCh = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			if len(paths) > 0 {
				onChange(paths)
			}
		}
	}
}
