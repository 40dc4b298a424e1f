// Package watch reruns generation when schema declarations change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/schemagen/usrgen/engine"
)

// Watcher triggers a cycle whenever a watched declaration file or one of
// the watched files changes.
type Watcher struct {
	// Dirs are watched recursively for declaration files.
	Dirs []string

	// Files are watched individually, typically the configuration file.
	Files []string

	Debounce time.Duration
	Logger   zerolog.Logger

	// Cycle runs one full load and generate pass.
	Cycle func(ctx context.Context)
}

// Run watches until ctx is done. One cycle runs immediately.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range w.Dirs {
		if err := w.addTree(watcher, dir); err != nil {
			return err
		}
	}
	files := make(map[string]bool, len(w.Files))
	for _, f := range w.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("absolute path: %w", err)
		}
		files[abs] = true
		// Watch the directory (more reliable for editors that do atomic saves)
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("watch directory: %w", err)
		}
	}

	triggers := make(chan struct{}, 1)
	trigger := func() {
		select {
		case triggers <- struct{}{}:
		default:
		}
	}
	trigger()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if w.relevant(watcher, event, files) {
					w.Logger.Debug().
						Str("event", event.Op.String()).
						Str("file", event.Name).
						Msg("change detected")
					trigger()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.Logger.Error().Err(err).Msg("file watcher error")
			case <-ctx.Done():
				return
			}
		}
	}()

	w.Logger.Info().Strs("dirs", w.Dirs).Strs("files", w.Files).Msg("watching for changes")
	Debounce(ctx, triggers, w.Debounce, w.Cycle)
	return nil
}

func (w *Watcher) addTree(watcher *fsnotify.Watcher, root string) error {
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
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) relevant(watcher *fsnotify.Watcher, event fsnotify.Event, files map[string]bool) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if abs, err := filepath.Abs(event.Name); err == nil && files[abs] {
		return true
	}
	if !w.inDirs(event.Name) {
		return false
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// files moved in with the directory arrive without events
			if err := w.addTree(watcher, event.Name); err != nil {
				w.Logger.Error().Err(err).Msg("watch new directory")
			}
			return true
		}
	}
	return engine.IsDeclarationFile(event.Name)
}

func (w *Watcher) inDirs(path string) bool {
	for _, dir := range w.Dirs {
		rel, err := filepath.Rel(dir, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
