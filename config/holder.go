package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Holder keeps the live configuration and swaps it atomically on reload.
// Reloads come from three places: an explicit Reload call, a write to the
// config file (fsnotify), and SIGHUP. A reload that fails to parse keeps
// the previous config in place.
type Holder struct {
	path   string
	logger zerolog.Logger

	current atomic.Pointer[Config]

	mu        sync.Mutex // guards listeners and watcher setup
	listeners []func(*Config)
	watcher   *fsnotify.Watcher
	done      chan struct{}
	stopOnce  sync.Once
}

// NewHolder loads the file once and wraps it in a Holder. Watching starts
// only when WatchFile or WatchSignals is called.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	cfg, err := Load(abs)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	h := &Holder{
		path:   abs,
		logger: logger,
		done:   make(chan struct{}),
	}
	h.current.Store(cfg)
	return h, nil
}

// Get returns the current configuration. The returned value is shared and
// must be treated as read-only.
func (h *Holder) Get() *Config {
	return h.current.Load()
}

// OnChange registers fn to run after every successful reload.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

// Reload re-reads the file and swaps in the result. On parse failure the
// old config stays active and the error is returned.
func (h *Holder) Reload() error {
	next, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Str("path", h.path).
			Msg("config reload failed, keeping previous config")
		return fmt.Errorf("reload config: %w", err)
	}

	prev := h.current.Swap(next)
	h.announce(prev, next)

	h.mu.Lock()
	listeners := append([]func(*Config){}, h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(next)
	}

	h.logger.Info().Str("path", h.path).Msg("configuration reloaded")
	return nil
}

// WatchFile watches the config file's directory and reloads on write or
// create events for the file. Watching the directory rather than the file
// survives editors that replace the file on save.
func (h *Holder) WatchFile() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	h.mu.Lock()
	h.watcher = w
	h.mu.Unlock()

	go h.fileLoop(w)
	h.logger.Info().Str("path", h.path).Msg("watching config file")
	return nil
}

// WatchSignals reloads on SIGHUP until Stop is called.
func (h *Holder) WatchSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)

	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ch:
				h.logger.Info().Msg("SIGHUP received")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-h.done:
				return
			}
		}
	}()
}

// Stop ends file and signal watching. The Holder itself stays usable, and
// calling Stop again is a no-op.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		if h.watcher != nil {
			h.watcher.Close()
			h.watcher = nil
		}
		h.mu.Unlock()
	})
}

func (h *Holder) fileLoop(w *fsnotify.Watcher) {
	name := filepath.Base(h.path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			h.logger.Debug().Str("event", ev.Op.String()).Msg("config file changed")
			if err := h.Reload(); err != nil {
				h.logger.Error().Err(err).Msg("file watch reload failed")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("config watcher error")
		case <-h.done:
			return
		}
	}
}

// announce logs the reload-relevant differences between two configs.
func (h *Holder) announce(prev, next *Config) {
	if prev == nil {
		return
	}
	if prev.Logging.Level != next.Logging.Level {
		h.logger.Info().
			Str("old", prev.Logging.Level).
			Str("new", next.Logging.Level).
			Msg("log level changed")
	}
	if len(prev.Collections) != len(next.Collections) {
		h.logger.Info().
			Int("old", len(prev.Collections)).
			Int("new", len(next.Collections)).
			Msg("collection count changed")
	}
	if prev.Server.DynamicCollections != next.Server.DynamicCollections {
		h.logger.Info().
			Bool("old", prev.Server.DynamicCollections).
			Bool("new", next.Server.DynamicCollections).
			Msg("dynamic collections changed")
	}
}

// ReloadableFields lists config keys a reload applies without a restart.
func ReloadableFields() []string {
	return []string{
		"collections",
		"logging.level",
		"logging.format",
	}
}

// NonReloadableFields lists config keys that only take effect at startup.
func NonReloadableFields() []string {
	return []string{
		"server.host",
		"server.port",
		"server.dynamic_collections",
		"store.backend",
		"store.namespace",
		"auth.enabled",
		"metrics.path",
	}
}
