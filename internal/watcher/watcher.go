// Package watcher monitors inbox directories and hands over ciphertext files
// once they stop changing.
package watcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/crypto/blake2b"
)

// ErrFileTooLarge is reported for files over Options.MaxFileSize.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = time.Second

// Digest is the BLAKE2b-256 hash of a file's bytes.
type Digest [blake2b.Size256]byte

// Event is a file that has been stable for the debounce interval.
type Event struct {
	Path      string
	Text      string
	Digest    Digest
	Size      int64
	Timestamp time.Time
}

// Options configures a Watcher.
type Options struct {
	// Paths are directories (or single files) to watch.
	Paths []string

	// IncludePatterns are glob patterns matched against the base name. An
	// empty list includes every file.
	IncludePatterns []string

	// ExcludePatterns win over IncludePatterns.
	ExcludePatterns []string

	// Debounce is how long a file must go unmodified before it is read.
	Debounce time.Duration

	// MaxFileSize rejects larger files. 0 means no limit.
	MaxFileSize int64

	// ScanExisting queues files already present when Start is called.
	ScanExisting bool
}

// Watcher monitors files and directories for changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	opts      Options

	// path -> last modification seen
	state   map[string]time.Time
	emitted map[string]Digest
	stateMu sync.Mutex

	events chan Event
	errors chan error

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a new file watcher.
func New(opts Options) (*Watcher, error) {
	if len(opts.Paths) == 0 {
		return nil, fmt.Errorf("no paths to watch")
	}
	for _, p := range append(append([]string{}, opts.IncludePatterns...), opts.ExcludePatterns...) {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		opts:      opts,
		state:     make(map[string]time.Time),
		emitted:   make(map[string]Digest),
		events:    make(chan Event, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the channel of stable files.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start begins watching all configured paths.
func (w *Watcher) Start() error {
	for _, path := range w.opts.Paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return err
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return err
		}

		if !info.IsDir() {
			if err := w.fsWatcher.Add(filepath.Dir(absPath)); err != nil {
				return err
			}
			if w.opts.ScanExisting {
				w.track(absPath, info.ModTime())
			}
			continue
		}

		if err := w.fsWatcher.Add(absPath); err != nil {
			return err
		}
		if !w.opts.ScanExisting {
			continue
		}

		entries, err := os.ReadDir(absPath)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.IsDir() || !w.Matches(entry.Name()) {
				continue
			}
			if info, err := entry.Info(); err == nil {
				w.track(filepath.Join(absPath, entry.Name()), info.ModTime())
			}
		}
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()

	return nil
}

// Stop shuts the watcher down and closes its channels.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		close(w.events)
		close(w.errors)
		err = w.fsWatcher.Close()
	})
	return err
}

// Matches reports whether a base file name passes the include and exclude
// patterns.
func (w *Watcher) Matches(name string) bool {
	for _, p := range w.opts.ExcludePatterns {
		if ok, _ := filepath.Match(p, name); ok {
			return false
		}
	}
	if len(w.opts.IncludePatterns) == 0 {
		return true
	}
	for _, p := range w.opts.IncludePatterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) track(path string, mod time.Time) {
	w.stateMu.Lock()
	w.state[path] = mod
	w.stateMu.Unlock()
}

func (w *Watcher) forget(path string) {
	w.stateMu.Lock()
	delete(w.state, path)
	delete(w.emitted, path)
	w.stateMu.Unlock()
}

func (w *Watcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.Matches(filepath.Base(event.Name)) {
				continue
			}

			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.forget(event.Name)
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			info, err := os.Stat(event.Name)
			if err != nil || info.IsDir() {
				continue
			}
			w.track(event.Name, time.Now())

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	tick := w.opts.Debounce / 2
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	if tick > time.Second {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			w.checkStableFiles(now)
		}
	}
}

// checkStableFiles reads files that have not changed for the debounce
// interval. File I/O happens without the state lock held.
func (w *Watcher) checkStableFiles(now time.Time) {
	threshold := now.Add(-w.opts.Debounce)

	stable := make(map[string]time.Time)
	w.stateMu.Lock()
	for path, lastMod := range w.state {
		if lastMod.Before(threshold) {
			stable[path] = lastMod
		}
	}
	w.stateMu.Unlock()

	for path, lastMod := range stable {
		text, digest, size, err := ReadCiphertext(path, w.opts.MaxFileSize)

		w.stateMu.Lock()
		current, exists := w.state[path]
		if !exists || !current.Equal(lastMod) {
			// Deleted or modified while reading; let it settle again.
			w.stateMu.Unlock()
			continue
		}
		if err != nil {
			delete(w.state, path)
			w.stateMu.Unlock()
			w.sendError(err)
			continue
		}
		if prev, ok := w.emitted[path]; ok && prev == digest {
			// Touched but unchanged.
			delete(w.state, path)
			w.stateMu.Unlock()
			continue
		}

		select {
		case w.events <- Event{Path: path, Text: text, Digest: digest, Size: size, Timestamp: now}:
			delete(w.state, path)
			w.emitted[path] = digest
		default:
			// Event channel full, try again next tick.
		}
		w.stateMu.Unlock()
	}
}

// ReadCiphertext reads a file of at most maxSize bytes (0 for no limit) and
// returns its contents with their digest.
func ReadCiphertext(path string, maxSize int64) (string, Digest, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", Digest{}, 0, err
	}
	defer f.Close()

	var r io.Reader = f
	if maxSize > 0 {
		r = io.LimitReader(f, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", Digest{}, 0, fmt.Errorf("read %s: %w", path, err)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return "", Digest{}, 0, fmt.Errorf("%w: %s is over %d bytes", ErrFileTooLarge, path, maxSize)
	}

	return string(data), Digest(blake2b.Sum256(data)), int64(len(data)), nil
}

// WatchedPaths returns the list of paths being watched.
func (w *Watcher) WatchedPaths() []string {
	return w.opts.Paths
}

// TrackedFiles returns the number of files waiting to settle.
func (w *Watcher) TrackedFiles() int {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return len(w.state)
}
