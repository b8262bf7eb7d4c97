package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const settleDelay = 500 * time.Millisecond

// ImportedCallback is called after a watcher-driven import completes.
type ImportedCallback func(file string, created int)

// Watch starts an fsnotify watcher on the inbox directory and imports every
// CSV or XLSX file dropped into it, until ctx is cancelled. Writes are
// debounced so a file is only imported once its producer has finished
// writing. Imported files are renamed with an ".imported" suffix so they are
// not picked up again.
func Watch(ctx context.Context, im *Importer, dir string, logger *slog.Logger, cb ImportedCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("inbox watcher: started", slog.String("dir", dir))

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)
	ready := make(chan string, 16)

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok {
			t.Reset(settleDelay)
			return
		}
		pending[path] = time.AfterFunc(settleDelay, func() {
			mu.Lock()
			delete(pending, path)
			mu.Unlock()
			select {
			case ready <- path:
			default:
				logger.Warn("inbox watcher: import queue full", slog.String("path", path))
			}
		})
	}

	stopTimers := func() {
		mu.Lock()
		defer mu.Unlock()
		for _, t := range pending {
			t.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimers()
			logger.Info("inbox watcher: stopped")
			return nil

		case path := <-ready:
			created, err := im.ImportFile(ctx, path)
			if err != nil {
				logger.Warn("inbox watcher: import failed",
					slog.String("path", path),
					slog.String("error", err.Error()))
				continue
			}
			markImported(path, logger)
			if cb != nil {
				cb(filepath.Base(path), created)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !importable(ev.Name) {
				continue
			}
			schedule(ev.Name)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func importable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// markImported renames a processed file so later events skip it.
func markImported(path string, logger *slog.Logger) {
	if err := os.Rename(path, path+".imported"); err != nil {
		logger.Warn("inbox watcher: rename failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}
