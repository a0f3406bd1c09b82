package prefs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the directory holding f and calls cb
// whenever the file's content changes because of another writer. Writes made
// through f itself are ignored. It blocks until ctx is cancelled.
//
// The directory is watched rather than the file because atomic writes
// replace the file, which drops a watch on the old inode.
func Watch(ctx context.Context, f *File, logger *slog.Logger, cb func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(f.Path())
	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("path", f.Path()))

	last := diskSum(f.Path())

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(watchDebounce)
			timerCh = timer.C
		} else {
			timer.Reset(watchDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			sum := diskSum(f.Path())
			if sum == last {
				continue
			}
			last = sum
			if sum == f.writtenSum() {
				logger.Debug("watcher: own write ignored")
				continue
			}
			logger.Debug("watcher: external change", slog.String("checksum", sum))
			if cb != nil {
				cb()
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.Path() {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// diskSum returns the checksum of the file, or "" when it does not exist.
func diskSum(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return "unreadable"
		}
		return ""
	}
	return contentSum(data)
}

func contentSum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
