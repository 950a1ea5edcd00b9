package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher monitors the config file and reloads it when it changes. Editors
// replace files by rename, so the parent directory is watched rather than
// the file itself.
type Watcher struct {
	targetPath string
	parentPath string
	onReload   func(*Config)

	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once

	// debounce window collapses the burst of events a single save produces
	debounce time.Duration
	timerMu  sync.Mutex
	timer    *time.Timer
}

// NewWatcher creates a watcher for the given config file. The onReload
// callback receives the freshly loaded configuration.
func NewWatcher(targetPath string, onReload func(*Config)) (*Watcher, error) {
	absPath, err := filepath.Abs(targetPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	return &Watcher{
		targetPath: absPath,
		parentPath: filepath.Dir(absPath),
		onReload:   onReload,
		stopCh:     make(chan struct{}),
		debounce:   200 * time.Millisecond,
	}, nil
}

// Start begins watching. Returns an error if the watch cannot be
// established.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w.watcher = watcher

	if err := watcher.Add(w.parentPath); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", w.parentPath, err)
	}

	go w.watchLoop()

	log.Debug().
		Str("path", w.targetPath).
		Msg("Config watcher started")

	return nil
}

// Stop terminates the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.watcher != nil {
			w.watcher.Close()
		}
		w.timerMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.timerMu.Unlock()
	})
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.targetPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

// scheduleReload debounces before reloading so partial writes settle first.
func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.stopCh:
		return
	default:
	}

	cfg, err := Load(w.targetPath)
	if err != nil {
		log.Warn().Err(err).Msg("Config reload failed, keeping previous settings")
		return
	}

	log.Info().
		Str("path", w.targetPath).
		Msg("Config reloaded")

	if w.onReload != nil {
		w.onReload(cfg)
	}
}
