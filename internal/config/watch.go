package config

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
)

const defaultDebounce = 250 * time.Millisecond

// WatchOption configures Watch.
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
	log      zerolog.Logger
}

// WithDebounce sets how long the file must stay quiet before it is re-read.
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithWatchLogger sets the logger used for reload diagnostics.
func WithWatchLogger(log zerolog.Logger) WatchOption {
	return func(o *watchOptions) { o.log = log }
}

// Watch re-reads path whenever it changes and passes every valid, changed
// configuration to fn. Invalid files are logged and skipped. It blocks until
// ctx is done.
func Watch(ctx context.Context, path string, fn func(*Config), opts ...WatchOption) error {
	o := watchOptions{debounce: defaultDebounce, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors often replace the file instead of writing it.
	dir := filepath.Dir(path)
	file := filepath.Base(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
		last  = fingerprint(nil)
	)
	if cfg, err := LoadFrom(path); err == nil {
		last = fingerprint(cfg)
	}

	reload := func() {
		cfg, err := LoadFrom(path)
		if err != nil {
			o.log.Warn().Err(err).Str("path", path).Msg("config reload rejected")
			return
		}
		fp := fingerprint(cfg)

		mu.Lock()
		unchanged := bytes.Equal(fp, last)
		if !unchanged {
			last = fp
		}
		mu.Unlock()

		if unchanged {
			o.log.Debug().Str("path", path).Msg("config unchanged")
			return
		}
		o.log.Info().Str("path", path).Msg("config reloaded")
		fn(cfg)
	}

	o.log.Debug().Str("dir", dir).Str("file", file).Msg("config watcher started")
	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(o.debounce, reload)
			mu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			o.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func fingerprint(cfg *Config) []byte {
	if cfg == nil {
		return nil
	}
	b, err := toml.Marshal(cfg)
	if err != nil {
		return nil
	}
	return b
}
