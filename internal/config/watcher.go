package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// reloadDebounce coalesces the burst of events an editor save produces.
const reloadDebounce = 100 * time.Millisecond

// OnReload is called after a successful reload with the previous and the
// new config.
type OnReload func(old, new *Config)

// Watcher reloads the config file whenever it changes on disk.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	filePath  string
	logger    zerolog.Logger

	mu        sync.Mutex
	callbacks []OnReload

	done      chan struct{}
	closeOnce sync.Once
}

// Watch starts watching filePath, which must name the file Load read (see
// ConfigFilePath). Each change is re-loaded, validated and published
// through Get; an invalid file leaves the previous config in place.
func Watch(filePath string) (*Watcher, error) {
	if filePath == "" {
		return nil, fmt.Errorf("config watcher: file path must not be empty")
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("config watcher: resolving path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: creating fsnotify watcher: %w", err)
	}
	// Atomic saves replace the file, so the directory is watched instead.
	dir := filepath.Dir(absPath)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config watcher: watching directory %s: %w", dir, err)
	}

	w := &Watcher{
		fsWatcher: fsw,
		filePath:  absPath,
		logger:    log.With().Str("component", "config-watcher").Logger(),
		done:      make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// OnChange registers fn to run after each successful reload.
func (w *Watcher) OnChange(fn OnReload) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) loop() {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, w.reload)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("fsnotify error")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.filePath {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) reload() {
	old := Get()

	newCfg, err := Load(w.filePath)
	if err != nil {
		w.logger.Error().Err(err).Msg("reload failed, keeping previous config")
		return
	}

	changed := ChangedSections(old, newCfg)
	w.logger.Info().Str("path", w.filePath).Strs("changed", changed).Msg("config reloaded")
	for _, section := range changed {
		if section != "server" {
			w.logger.Warn().Str("section", section).Msg("setting takes effect after restart")
		}
	}

	w.mu.Lock()
	cbs := append([]OnReload(nil), w.callbacks...)
	w.mu.Unlock()

	for _, cb := range cbs {
		w.safeCall(cb, old, newCfg)
	}
}

func (w *Watcher) safeCall(cb OnReload, old, newCfg *Config) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Interface("panic", r).Msg("reload callback panicked")
		}
	}()
	cb(old, newCfg)
}

// ChangedSections lists the top-level sections (by their TOML name) whose
// values differ between a and b. A nil a counts as every section changed.
func ChangedSections(a, b *Config) []string {
	if b == nil {
		return nil
	}
	bv := reflect.ValueOf(*b)
	var av reflect.Value
	if a != nil {
		av = reflect.ValueOf(*a)
	}

	var out []string
	t := bv.Type()
	for i := 0; i < t.NumField(); i++ {
		if a != nil && reflect.DeepEqual(av.Field(i).Interface(), bv.Field(i).Interface()) {
			continue
		}
		out = append(out, t.Field(i).Tag.Get("toml"))
	}
	return out
}
