// File: config/watcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Watcher bridges a YAML-backed Config onto control.ConfigStore's
// hot-reload hooks, with an optional SIGHUP-driven reload loop.

package config

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/momentics/hioload-ws/control"
)

// Watcher owns the on-disk path for a Config and republishes it through a
// control.ConfigStore whenever Reload runs.
type Watcher struct {
	path  string
	store *control.ConfigStore

	mu      sync.RWMutex
	current Config
}

// NewWatcher loads path once and returns a Watcher tracking it.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path, store: control.NewConfigStore(), current: cfg}
	w.publish(cfg)
	return w, nil
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnReload registers a listener invoked after every successful Reload.
// Listeners run asynchronously, each on its own goroutine, so one may
// still be pending when Reload returns.
func (w *Watcher) OnReload(fn func()) { w.store.OnReload(fn) }

// Reload re-reads the file at path and, on success, swaps it in and
// starts every registered reload listener on its own goroutine.
func (w *Watcher) Reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
	w.publish(cfg)
	control.TriggerHotReload()
	return nil
}

func (w *Watcher) publish(cfg Config) {
	w.store.SetConfig(map[string]any{
		"reactor.listenAddr":     cfg.Reactor.ListenAddr,
		"reactor.backlog":        cfg.Reactor.Backlog,
		"reactor.maxPayloadSize": cfg.Reactor.MaxPayloadSize,
		"bus.queueSize":          cfg.Bus.QueueSize,
		"bus.workflowRegistry":   cfg.Bus.WorkflowRegistry,
	})
}

// WatchSIGHUP reloads the config every time the process receives SIGHUP,
// until stop is closed. Errors from a failed reload are dropped onto
// errCh if it has room, so a caller that wants to observe them can; a nil
// errCh silently discards them.
func (w *Watcher) WatchSIGHUP(stop <-chan struct{}, errCh chan<- error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case <-stop:
				return
			case <-sigCh:
				if err := w.Reload(); err != nil && errCh != nil {
					select {
					case errCh <- err:
					default:
					}
				}
			}
		}
	}()
}
