// Package watcher reports changes to a tree source so the engine can be
// rebuilt from a fresh fetch. It uses fsnotify with a polling fallback.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/dirtree/pkg/debug"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// ForcePollEnvVar forces polling mode when set to a truthy value.
const ForcePollEnvVar = "DT_FORCE_POLL"

// Common errors.
var (
	ErrSourceRemoved  = errors.New("watched source was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithOnChange sets the callback invoked after a burst of changes settles.
// It receives the path of the last file that changed.
func WithOnChange(fn func(path string)) Option {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// WithFilter restricts a directory watch to the file names fn accepts.
// It has no effect when the watched path is a file.
func WithFilter(fn func(name string) bool) Option {
	return func(w *Watcher) {
		w.filter = fn
	}
}

// Watcher monitors a tree source, either one file or a directory of
// candidate files.
type Watcher struct {
	path             string
	isDir            bool
	filter           func(name string) bool
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func(path string)
	onError          func(error)
	forcePoll        bool

	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	useFallback bool
	last        snapshot

	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan string
}

// snapshot is the polled state of the watched source.
type snapshot struct {
	mtime time.Time
	size  int64
	name  string
}

// New creates a watcher for path. A directory path watches every file in it
// that passes the filter.
func New(path string, opts ...Option) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:             absPath,
		filter:           func(string) bool { return true },
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func(string) {},
		onError:          func(error) {},
		changeCh:         make(chan string, 1),
	}
	if info, err := os.Stat(absPath); err == nil && info.IsDir() {
		w.isDir = true
	}

	for _, opt := range opts {
		opt(w)
	}

	w.debouncer = NewDebouncer(w.debounceDuration)
	return w, nil
}

// Start begins watching until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	last, err := w.stat()
	if err != nil && os.IsPermission(err) {
		return ErrPermission
	}
	// A missing source is fine; it may be created later.
	w.last = last

	ctx, w.cancel = context.WithCancel(ctx)
	w.useFallback = w.forcePoll || envBool(ForcePollEnvVar)

	if !w.useFallback {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.useFallback = true
		} else {
			// Watch the directory, which also catches atomic rename-over writes.
			dir := w.path
			if !w.isDir {
				dir = filepath.Dir(w.path)
			}
			if err := fsw.Add(dir); err != nil {
				fsw.Close()
				w.useFallback = true
			} else {
				w.fsWatcher = fsw
				go w.watchFsnotify(ctx, fsw)
			}
		}
	}

	if w.useFallback {
		go w.watchPolling(ctx)
	}

	debug.Log("watcher: started on %s (polling=%v)", w.path, w.useFallback)
	w.started = true
	return nil
}

// Stop stops watching. The Changed channel stays open so a pending receive
// simply never fires.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.debouncer.Cancel()
	w.started = false
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed returns a channel that receives the changed path after each
// settled burst. Sends never block; a slow reader sees one pending change.
func (w *Watcher) Changed() <-chan string {
	return w.changeCh
}

// Path returns the watched path.
func (w *Watcher) Path() string {
	return w.path
}

// PollInterval returns the polling interval used when polling mode is active.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// relevant reports whether an event on name concerns the watched source.
func (w *Watcher) relevant(name string) bool {
	if w.isDir {
		return filepath.Dir(name) == w.path && w.filter(filepath.Base(name))
	}
	return filepath.Base(name) == filepath.Base(w.path)
}

// watchFsnotify monitors using fsnotify events.
func (w *Watcher) watchFsnotify(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}

			switch {
			case event.Op&fsnotify.Remove != 0 && !w.isDir:
				w.onError(ErrSourceRemoved)

			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0:
				name := event.Name
				w.debouncer.Trigger(func() { w.notifyChange(name) })
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

// watchPolling monitors using periodic stat checks.
func (w *Watcher) watchPolling(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			cur, err := w.stat()
			if err != nil {
				switch {
				case os.IsNotExist(err):
					w.mu.RLock()
					hadSource := !w.last.mtime.IsZero()
					w.mu.RUnlock()
					if hadSource {
						w.onError(ErrSourceRemoved)
					}
				case os.IsPermission(err):
					w.onError(ErrPermission)
				default:
					w.onError(err)
				}
				continue
			}

			w.mu.Lock()
			changed := cur.mtime.After(w.last.mtime) || cur.size != w.last.size
			if changed {
				w.last = cur
			}
			w.mu.Unlock()

			if changed {
				name := cur.name
				w.debouncer.Trigger(func() { w.notifyChange(name) })
			}
		}
	}
}

// stat summarizes the watched source. For a directory it reports the newest
// matching file and the summed size of all matches.
func (w *Watcher) stat() (snapshot, error) {
	if !w.isDir {
		info, err := os.Stat(w.path)
		if err != nil {
			return snapshot{}, err
		}
		return snapshot{mtime: info.ModTime(), size: info.Size(), name: w.path}, nil
	}

	entries, err := os.ReadDir(w.path)
	if err != nil {
		return snapshot{}, err
	}
	var s snapshot
	for _, e := range entries {
		if e.IsDir() || !w.filter(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		s.size += info.Size()
		if info.ModTime().After(s.mtime) {
			s.mtime = info.ModTime()
			s.name = filepath.Join(w.path, e.Name())
		}
	}
	return s, nil
}

// notifyChange invokes the onChange callback and signals the change channel.
func (w *Watcher) notifyChange(path string) {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if !started {
		return
	}

	debug.Log("watcher: change in %s", path)
	w.onChange(path)

	select {
	case w.changeCh <- path:
	default:
	}
}
