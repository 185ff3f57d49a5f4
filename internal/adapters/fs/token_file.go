package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cyface-de/cyup/internal/ports"
)

// ErrEmptyToken is returned when the token file holds no token.
var ErrEmptyToken = errors.New("token file is empty")

// TokenFile implements ports.TokenSource backed by a file holding one
// bearer token. The file is re-read on Refresh and whenever Watch sees it
// change, so an external login helper can rotate tokens without a restart.
type TokenFile struct {
	path   string
	logger ports.Logger

	mu       sync.RWMutex
	token    string
	debounce *time.Timer
}

// NewTokenFile reads the token at path.
func NewTokenFile(path string, logger ports.Logger) (*TokenFile, error) {
	f := &TokenFile{path: path, logger: logger}
	if err := f.reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Token returns the most recently read token.
func (f *TokenFile) Token(context.Context) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.token == "" {
		return "", fmt.Errorf("%s: %w", f.path, ErrEmptyToken)
	}
	return f.token, nil
}

// Refresh re-reads the token file.
func (f *TokenFile) Refresh(context.Context) error {
	return f.reload()
}

// Path returns the token file path.
func (f *TokenFile) Path() string { return f.path }

func (f *TokenFile) reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return fmt.Errorf("%s: %w", f.path, ErrEmptyToken)
	}

	f.mu.Lock()
	changed := token != f.token
	f.token = token
	f.mu.Unlock()

	if changed {
		f.logger.Debug("token loaded", ports.String("path", f.path))
	}
	return nil
}

// Watch reloads the token whenever the file is written or replaced, until
// ctx is canceled. The parent directory is watched so atomic renames are
// seen as well.
func (f *TokenFile) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	name := filepath.Base(f.path)
	for {
		select {
		case <-ctx.Done():
			f.stopDebounce()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			f.debounceReload(50 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("token watcher error", ports.Err(err))
		}
	}
}

func (f *TokenFile) debounceReload(delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.debounce != nil {
		f.debounce.Stop()
	}
	f.debounce = time.AfterFunc(delay, func() {
		if err := f.reload(); err != nil {
			f.logger.Warn("token reload failed", ports.String("path", f.path), ports.Err(err))
		}
	})
}

func (f *TokenFile) stopDebounce() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.debounce != nil {
		f.debounce.Stop()
	}
}
