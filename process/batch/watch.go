package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Debounce timings for Watch: events are collected every tick and a file is
// handed over once it has been quiet for settle.
var (
	watchTick   = 250 * time.Millisecond
	watchSettle = 300 * time.Millisecond
)

// IsDatasetFile reports whether a watched file should be processed.
func IsDatasetFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || IsOutputFile(base) {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".csv")
}

// Watch calls handle for every dataset file created or rewritten in dir
// until ctx is done. Files are handled one at a time.
func Watch(ctx context.Context, dir string, handle func(ctx context.Context, path string), log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Info("watching for datasets", zap.String("dir", dir))

	fileCh := make(chan string, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for path := range fileCh {
			handle(ctx, path)
		}
	}()
	defer func() {
		close(fileCh)
		<-done
	}()

	pending := map[string]time.Time{}
	ticker := time.NewTicker(watchTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !IsDatasetFile(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) < watchSettle {
					continue
				}
				delete(pending, name)
				select {
				case fileCh <- name:
				case <-ctx.Done():
					return nil
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		}
	}
}
