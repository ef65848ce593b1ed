package config

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler receives the freshly loaded config after a file change.
type ChangeHandler func(cfg *Config)

// Watcher reloads the config file when it changes. Rapid successive
// writes are debounced. Only handlers decide what is applied live; the
// watcher itself never mutates running components.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu       sync.Mutex
	handlers []ChangeHandler
	stop     chan struct{}
}

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	return &Watcher{
		path:     path,
		fsw:      fsw,
		debounce: 300 * time.Millisecond,
		stop:     make(chan struct{}),
	}, nil
}

// OnChange registers a handler invoked after each successful reload.
func (w *Watcher) OnChange(h ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Start begins watching. Returns an error if the path cannot be watched.
func (w *Watcher) Start() error {
	if err := w.fsw.Add(w.path); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	go w.loop()
	slog.Info("config watcher started", "path", w.path)
	return nil
}

// Stop halts the watcher. Safe to call once.
func (w *Watcher) Stop() {
	close(w.stop)
	w.fsw.Close()
}

func (w *Watcher) loop() {
	var pending *time.Timer
	for {
		select {
		case <-w.stop:
			if pending != nil {
				pending.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		// Keep running with the previous config; a broken edit must not
		// take the agent down.
		slog.Error("config reload failed", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	handlers := make([]ChangeHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	for _, h := range handlers {
		h(cfg)
	}
	slog.Info("config reloaded", "path", w.path)
}
