package auth

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval is the time to wait for rapid file changes to settle.
const debounceInterval = 50 * time.Millisecond

// FileSource reads the token from a file. Until Start is called every
// Token call reads the file; once started, a watcher keeps a cached copy
// current.
type FileSource struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	token string
	err   error

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	reloads atomic.Int64
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:   path,
		logger: logger.With("component", "auth"),
	}
}

// Path returns the token file path.
func (f *FileSource) Path() string {
	return f.path
}

// Token implements Source.
func (f *FileSource) Token() (string, error) {
	if !f.running.Load() {
		return readTokenFile(f.path)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.token, f.err
}

// Reloads returns how many times the watcher has re-read the file.
func (f *FileSource) Reloads() int64 {
	return f.reloads.Load()
}

func (f *FileSource) reload() {
	tok, err := readTokenFile(f.path)
	f.mu.Lock()
	f.token, f.err = tok, err
	f.mu.Unlock()
	f.reloads.Add(1)

	switch {
	case err == nil:
		f.logger.Debug("token reloaded", "path", f.path)
	case errors.Is(err, ErrNoToken):
		f.logger.Debug("token file empty or missing", "path", f.path)
	default:
		f.logger.Warn("token reload failed", "path", f.path, "error", err)
	}
}

// Start loads the file and watches its directory for changes. Returns
// immediately. Use Stop to terminate.
func (f *FileSource) Start(ctx context.Context) error {
	if f.running.Load() {
		return errors.New("token watcher already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the parent directory since the file may not exist yet and
	// SaveToken replaces it by rename.
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		_ = watcher.Close()
		return err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}

	f.reload()

	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})
	f.running.Store(true)
	go f.watch(ctx, watcher)
	return nil
}

func (f *FileSource) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(f.done)
	defer func() { _ = watcher.Close() }()

	var debounce *time.Timer
	var debounceMu sync.Mutex
	defer func() {
		debounceMu.Lock()
		if debounce != nil {
			debounce.Stop()
		}
		debounceMu.Unlock()
	}()

	trigger := func() {
		debounceMu.Lock()
		defer debounceMu.Unlock()
		if debounce != nil {
			debounce.Stop()
		}
		debounce = time.AfterFunc(debounceInterval, f.reload)
	}

	base := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != base {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				trigger()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("token watcher error", "error", err)
		}
	}
}

// Stop terminates the watcher and waits for it to exit. Token falls back
// to reading the file directly.
func (f *FileSource) Stop() error {
	if !f.running.Load() {
		return nil
	}
	f.cancel()
	<-f.done
	f.running.Store(false)
	return nil
}
