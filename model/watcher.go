package model

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch logs a warning whenever a loaded artifact changes on disk. The
// registry itself never reloads mid-process; operators restart to pick up new
// artifacts. Watch returns once the watcher is installed and stops when ctx
// is canceled.
func (r *Registry) Watch(ctx context.Context, log *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return err
	}

	artifacts := map[string]bool{
		LogisticFile: true,
		TreeFile:     true,
		ForestFile:   true,
		BoostFile:    true,
		LSTMFile:     true,
		ScalerFile:   true,
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !artifacts[filepath.Base(event.Name)] {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
					log.Warn("model artifact changed on disk; loaded models are stale until restart",
						zap.String("artifact", filepath.Base(event.Name)),
						zap.String("op", event.Op.String()))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error("artifact watcher error", zap.Error(err))
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
