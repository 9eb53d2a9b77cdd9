package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/config"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/debug"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/lockfile"
)

var watchCmd = &cobra.Command{
	Use:     "watch <document>",
	GroupID: "workflow",
	Short:   "Re-run the workflow whenever the document changes",
	Long: `Runs the workflow once, then again each time the document is saved, for
example after answering questions in an editor. Blocked runs are reported and
watching continues. Only one watcher per document is allowed.

Press Ctrl+C to stop.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := docPath(args[0])
		if err != nil {
			return err
		}
		return watchDocument(rootCtx, path, config.GetDuration("watch.debounce"))
	},
}

func watchDocument(ctx context.Context, path string, debounce time.Duration) error {
	wl, err := lockfile.AcquireWatchLock(path)
	if err != nil {
		return err
	}
	defer func() { _ = wl.Release() }()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors often replace the file rather than
	// writing it in place.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	w := &docWatcher{path: path}
	w.pass(ctx)
	notef("\nWatching %s for changes... (Press Ctrl+C to exit)\n", path)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			notef("\nStopped watching.\n")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			w.pass(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			WarnError("watcher: %v", err)
		}
	}
}

// docWatcher remembers the last content it processed so its own writes do
// not trigger another pass.
type docWatcher struct {
	path string
	last string
}

func (w *docWatcher) pass(ctx context.Context) {
	data, err := os.ReadFile(w.path) // #nosec G304 - watched document
	if err != nil {
		WarnError("reading %s: %v", w.path, err)
		return
	}
	if string(data) == w.last {
		debug.Logf("watch: %s unchanged, skipping\n", w.path)
		return
	}

	result, err := runWorkflow(ctx, w.path, config.MaxSteps(), false)
	switch {
	case err == nil, errors.Is(err, errBlocked):
	default:
		reportError(err)
	}
	if result.Document != nil {
		w.last = result.Document.String()
	} else {
		w.last = string(data)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
