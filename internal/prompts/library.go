// Package prompts holds the prompt templates the engine sends to its
// language model, with optional per-deployment overrides loaded from a
// directory of text files and hot-reloaded on change.
package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Library resolves template names to text, preferring overrides from its
// directory over the built-in defaults. Override files are named
// <template>.txt (router.txt, extraction.txt, ...).
type Library struct {
	dir string
	log *zap.Logger

	mu        sync.RWMutex
	overrides map[string]string

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewLibrary builds a library over dir. An empty dir serves the built-in
// defaults only. Overrides present at startup are loaded immediately.
func NewLibrary(dir string, log *zap.Logger) *Library {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Library{
		dir:       dir,
		log:       log,
		overrides: make(map[string]string),
	}
	if dir != "" {
		if err := l.Reload(); err != nil {
			log.Warn("prompt overrides not loaded", zap.String("dir", dir), zap.Error(err))
		}
	}
	return l
}

// Template returns the active text for name: the override if one is
// loaded, the built-in default otherwise.
func (l *Library) Template(name string) string {
	l.mu.RLock()
	override, ok := l.overrides[name]
	l.mu.RUnlock()
	if ok {
		return override
	}
	return defaults[name]
}

// Render substitutes {key} placeholders in the named template.
func (l *Library) Render(name string, vars map[string]string) string {
	out := l.Template(name)
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

// Reload re-reads every override file from the directory. Unknown names
// are ignored so stray files cannot shadow anything.
func (l *Library) Reload() error {
	if l.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return err
	}

	loaded := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".txt")
		if _, known := defaults[name]; !known {
			continue
		}
		data, err := os.ReadFile(filepath.Join(l.dir, entry.Name()))
		if err != nil {
			l.log.Warn("skipping unreadable override", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		loaded[name] = text
	}

	l.mu.Lock()
	l.overrides = loaded
	l.mu.Unlock()

	if len(loaded) > 0 {
		names := make([]string, 0, len(loaded))
		for n := range loaded {
			names = append(names, n)
		}
		l.log.Info("prompt overrides loaded", zap.Strings("templates", names))
	}
	return nil
}

// Watch starts reloading overrides whenever a file in the directory
// changes. It is a no-op without a directory.
func (l *Library) Watch() error {
	if l.dir == "" {
		return nil
	}

	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		l.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", l.dir, err)
	}

	l.watcher = watcher
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	l.running = true
	l.mu.Unlock()

	go l.run()
	return nil
}

// Stop halts the watcher and waits for its goroutine to exit.
func (l *Library) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.mu.Unlock()

	close(l.stopCh)
	<-l.doneCh

	if err := l.watcher.Close(); err != nil {
		l.log.Error("error closing prompt watcher", zap.Error(err))
	}
}

func (l *Library) run() {
	defer close(l.doneCh)

	for {
		select {
		case <-l.stopCh:
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".txt") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			l.log.Debug("prompt override changed", zap.String("file", event.Name))
			if err := l.Reload(); err != nil {
				l.log.Error("prompt reload failed", zap.Error(err))
			}

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.log.Error("prompt watcher error", zap.Error(err))
		}
	}
}
