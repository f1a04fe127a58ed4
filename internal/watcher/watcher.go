// Package watcher follows a template file on disk and reports its content
// after writes settle.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/affandhia/simple-template-string/internal/debounce"
	"github.com/affandhia/simple-template-string/internal/logging"
)

// ChangeHandler receives the file content after a change. A removed file is
// reported with removed set and empty text.
type ChangeHandler func(text string, removed bool)

// FileWatcher watches one file. The parent directory is watched so editors
// that replace the file through a rename are followed.
type FileWatcher struct {
	path      string
	watcher   *fsnotify.Watcher
	debouncer *debounce.Debouncer
	handler   ChangeHandler
	logger    zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a watcher for path that calls handler delay after the last change.
func New(path string, delay time.Duration, handler ChangeHandler) (*FileWatcher, error) {
	if handler == nil {
		return nil, errors.New("change handler is required")
	}
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	fw := &FileWatcher{
		path:    abs,
		watcher: w,
		handler: handler,
		logger:  logging.Component("watcher"),
	}
	fw.debouncer = debounce.New(delay, fw.fire)
	return fw, nil
}

// Path returns the absolute path being watched.
func (fw *FileWatcher) Path() string {
	return fw.path
}

// Start begins watching. It returns once the watch is registered.
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.running {
		return errors.New("watcher already running")
	}
	if err := fw.watcher.Add(filepath.Dir(fw.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(fw.path), err)
	}

	ctx, fw.cancel = context.WithCancel(ctx)
	fw.running = true
	fw.wg.Add(1)
	go fw.watchLoop(ctx)

	fw.logger.Debug().Str("path", fw.path).Msg("watching template file")
	return nil
}

// Stop ends the watch and releases the underlying watcher.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if fw.cancel != nil {
		fw.cancel()
	}
	fw.running = false
	fw.mu.Unlock()

	fw.wg.Wait()
	fw.debouncer.Stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	defer fw.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			fw.debouncer.Trigger(fw.path)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn().Err(err).Msg("file watcher error")
		}
	}
}

func (fw *FileWatcher) fire(key string, gen uint64) {
	if !fw.debouncer.Claim(key, gen) {
		return
	}
	data, err := os.ReadFile(fw.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fw.handler("", true)
			return
		}
		fw.logger.Warn().Err(err).Str("path", fw.path).Msg("failed to read template file")
		return
	}
	fw.handler(string(data), false)
}
