package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch streams filesystem changes under the root into the listener until
// ctx is cancelled. Create and write events map to FileChanged, remove and
// rename to FileRemoved; a rename therefore surfaces as FileRemoved for the
// old name followed by FileChanged for the new one. Directories created
// while watching are added to the watch as they appear; files landing in
// them before the watch registers are picked up by the next reconciliation.
func (d *Dir) Watch(ctx context.Context, l ChangeListener) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := d.watchTree(watcher, d.root); err != nil {
		return fmt.Errorf("watching %s: %w", d.root, err)
	}
	slog.Info("source: watching", "root", d.root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			d.handleEvent(watcher, event, l)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("source: watcher error", "error", err)
		}
	}
}

func (d *Dir) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event, l ChangeListener) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return
	}

	// New directories join the watch; their files arrive as later events.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := d.watchTree(watcher, event.Name); err != nil {
				slog.Warn("source: watching new directory failed",
					"dir", event.Name, "error", err)
			}
			return
		}
	}

	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if !d.parsers.Supported(ext) {
		return
	}
	rel, err := filepath.Rel(d.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		l.FileRemoved(rel)
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		l.FileChanged(rel)
	}
}

// watchTree registers dir and every non-hidden directory below it.
func (d *Dir) watchTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != d.root && strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
