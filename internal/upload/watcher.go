// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/jeranaias/cardiochat/internal/model"
)

// DefaultSettle is how long a dropped file must stay unchanged before it is
// reported, so partially copied files are not picked up.
const DefaultSettle = 300 * time.Millisecond

// Watcher reports image files that appear in a drop folder.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	settle  time.Duration
	files   chan string

	mu      sync.Mutex
	pending map[string]time.Time

	ignoredLog rate.Sometimes
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewWatcher watches dir, creating it if needed.
func NewWatcher(dir string) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create drop folder: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		dir:        dir,
		watcher:    fw,
		settle:     DefaultSettle,
		files:      make(chan string, 8),
		pending:    make(map[string]time.Time),
		ignoredLog: rate.Sometimes{First: 3, Interval: 10 * time.Second},
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	go w.processEvents()
	go w.processPending()
	return w, nil
}

// Dir returns the watched folder.
func (w *Watcher) Dir() string {
	return w.dir
}

// Files delivers the paths of settled image files. It is closed by Close.
func (w *Watcher) Files() <-chan string {
	return w.files
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}

// processEvents records create and write events for image files.
func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !looksLikeImage(event.Name) {
				w.ignoredLog.Do(func() {
					log.Printf("upload: drop folder ignored %s", filepath.Base(event.Name))
				})
				continue
			}
			w.mu.Lock()
			w.pending[event.Name] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("upload: watcher error: %v", err)
		}
	}
}

// processPending emits files whose last change is older than the settle time.
func (w *Watcher) processPending() {
	defer close(w.done)
	defer close(w.files)

	ticker := time.NewTicker(w.settle / 3)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			var ready []string

			w.mu.Lock()
			for path, changed := range w.pending {
				if now.Sub(changed) >= w.settle {
					ready = append(ready, path)
					delete(w.pending, path)
				}
			}
			w.mu.Unlock()

			for _, path := range ready {
				if info, err := os.Stat(path); err != nil || info.IsDir() {
					continue
				}
				select {
				case w.files <- path:
				case <-w.ctx.Done():
					return
				}
			}
		}
	}
}

// looksLikeImage checks the extension, skipping hidden and partial files.
func looksLikeImage(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	switch ext {
	case "", ".part", ".crdownload", ".tmp":
		return false
	}
	return model.IsImageMediaType(typeByExtension(ext))
}
