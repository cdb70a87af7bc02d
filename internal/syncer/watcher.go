package syncer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch runs an fsnotify watcher on the vault root until ctx is cancelled
// and turns every relevant file-system event into a coordinator trigger.
// The coordinator's full reconcile pass makes per-event bookkeeping
// unnecessary: a rename is just delete-of-old plus insert-of-new by the
// time the next pass looks at the disk.
//
// New directories created at runtime are added to the watch list.
func Watch(ctx context.Context, c *Coordinator, vaultRoot string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watched directory paths. Remove/Rename events carry no file
	// extension, so this set is how a vanished folder of notes is told
	// apart from an irrelevant file.
	dirs := make(map[string]struct{})
	if err := addDirsRecursive(w, vaultRoot, dirs); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name, dirs); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					c.Trigger()
					continue
				}
			}

			// A removed or renamed directory takes all its notes with it.
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				if _, watched := dirs[ev.Name]; watched {
					delete(dirs, ev.Name)
					logger.Debug("watcher: dir gone", slog.String("path", ev.Name))
					c.Trigger()
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			c.Trigger()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher and records them in dirs.
func addDirsRecursive(w *fsnotify.Watcher, root string, dirs map[string]struct{}) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return err
		}
		dirs[path] = struct{}{}
		return nil
	})
}
