package loader

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events editors emit for one save
const DefaultDebounce = 100 * time.Millisecond

// Watch follows manifest files in dirs until ctx is done: a created file is
// installed, a written one hot reloaded, a removed or renamed one uninstalled.
func (ld *Loader) Watch(ctx context.Context, dirs ...string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch plugins: %w", err)
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			_ = w.Close()
			return fmt.Errorf("watch plugins in %s: %w", d, err)
		}
	}

	deb := &debouncer{delay: DefaultDebounce, timers: make(map[string]*time.Timer)}
	go func() {
		defer func() {
			deb.stop()
			_ = w.Close()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if _, supported := FormatOf(ev.Name); !supported {
					continue
				}
				path := ev.Name
				deb.trigger(path, func() { ld.apply(path) })
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				ld.log.Warnf("plugin watcher error: %v", err)
			}
		}
	}()
	ld.log.Infof("watching plugin directories: %v", dirs)
	return nil
}

// apply reconciles one path with the file system state after its events settled
func (ld *Loader) apply(path string) {
	id, loaded := ld.idOf(path)
	exists := fileExists(path)
	switch {
	case loaded && !exists:
		if err := ld.Uninstall(id); err != nil {
			ld.log.Warnf("plugin %s removed from disk, uninstall failed: %v", id, err)
		}
	case loaded && exists:
		if err := ld.HotReload(id); err != nil {
			ld.log.Warnf("plugin %s changed on disk, reload failed: %v", id, err)
		}
	case !loaded && exists:
		if _, err := ld.Install(path); err != nil {
			ld.log.Warnf("plugin file %s appeared, install failed: %v", path, err)
		}
	}
}

func (ld *Loader) idOf(path string) (string, bool) {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	for id, p := range ld.loaded {
		if p == path {
			return id, true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

type debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timers  map[string]*time.Timer
	stopped bool
}

func (d *debouncer) trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.timers[key] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, key)
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for k, t := range d.timers {
		t.Stop()
		delete(d.timers, k)
	}
}
