package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// WatchSimulationConfig watches path for writes and invokes onChange with
// the freshly reloaded Config each time it parses cleanly. Decode failures
// on reload are reported via onError and otherwise ignored: only the
// initial load is fatal; a bad hot-reload is logged and the previous config
// keeps running. The returned stop function closes the underlying watcher.
func WatchSimulationConfig(path string, onChange func(*Config), onError func(error)) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %q: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := LoadSimulationConfig(path)
				if err != nil {
					onError(fmt.Errorf("reloading %q: %w", path, err))
					continue
				}
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				onError(err)
			case <-done:
				return
			}
		}
	}()

	return func() error {
		close(done)
		return watcher.Close()
	}, nil
}
