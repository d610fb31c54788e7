package framework

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/zeebo/blake3"

	"github.com/vgmdb/framework/tree"
)

// DefaultWatchInterval is used by Watch when interval is not positive.
const DefaultWatchInterval = time.Second

// watchDebounce lets editors finish writing before a reload.
const watchDebounce = 100 * time.Millisecond

// Snapshot is one loaded version of a watched configuration.
type Snapshot struct {
	Tree     *tree.Tree
	Version  int64
	LoadedAt time.Time
	Source   string // "initial" or the reason for the reload
}

// Watch loads name and then watches the directories of every contributing
// file, including the probe paths of missing optional imports. When one
// changes the tree is reloaded and emitted as a new snapshot. Reload errors
// are sent on the error channel and the previous snapshot stays current.
// Both channels are closed when ctx is done.
//
// A directory that cannot be watched is polled every interval instead.
// Provenance of a snapshot is dropped once the next one is delivered.
func (l *Loader) Watch(ctx context.Context, name string, interval time.Duration) (<-chan Snapshot, <-chan error, error) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	res, err := l.load(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("initial load failed: %w", err)
	}

	snapshotCh := make(chan Snapshot)
	errorCh := make(chan error)
	go l.watchLoop(ctx, name, interval, res, snapshotCh, errorCh)
	return snapshotCh, errorCh, nil
}

func (l *Loader) watchLoop(ctx context.Context, name string, interval time.Duration, res *loadResult, snapshotCh chan<- Snapshot, errorCh chan<- error) {
	defer close(snapshotCh)
	defer close(errorCh)

	w := newSourceWatcher(l, interval)
	defer w.close()
	sources := res.sources
	w.sync(sources)

	version := int64(1)
	current := res.tree
	select {
	case snapshotCh <- Snapshot{Tree: current, Version: version, LoadedAt: time.Now(), Source: "initial"}:
	case <-ctx.Done():
		return
	}

	for {
		if !w.wait(ctx) {
			return
		}

		cause := staleSource(sources)
		if cause == "" {
			continue
		}

		next, err := l.load(ctx, name)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			// Wait for the next change before retrying.
			sources = restamp(sources)
			select {
			case errorCh <- fmt.Errorf("reload failed: %w", err):
			case <-ctx.Done():
				return
			}
			continue
		}

		sources = next.sources
		w.sync(sources)
		version++
		l.logger.Debug().Str("entry", name).Str("cause", cause).Int64("version", version).Msg("config reloaded")
		select {
		case snapshotCh <- Snapshot{Tree: next.tree, Version: version, LoadedAt: time.Now(), Source: cause}:
			ForgetProvenance(current)
			current = next.tree
		case <-ctx.Done():
			ForgetProvenance(next.tree)
			return
		}
	}
}

// sourceWatcher turns filesystem events for the recorded sources into
// wake-ups. Directories that fsnotify cannot watch are polled.
type sourceWatcher struct {
	loader   *Loader
	interval time.Duration
	watcher  *fsnotify.Watcher
	dirs     map[string]bool // watched directories
	paths    map[string]bool // source and probe paths
	ticker   *time.Ticker
}

func newSourceWatcher(l *Loader, interval time.Duration) *sourceWatcher {
	w := &sourceWatcher{loader: l, interval: interval, dirs: map[string]bool{}, paths: map[string]bool{}}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.logger.Warn().Err(err).Msg("file watching unavailable, polling config sources")
		w.startPolling()
		return w
	}
	w.watcher = watcher
	return w
}

// sync points the watcher at the directories of sources.
func (w *sourceWatcher) sync(sources []SourceStamp) {
	w.paths = make(map[string]bool, len(sources))
	wanted := make(map[string]bool)
	for _, s := range sources {
		p := filepath.Clean(s.Path)
		w.paths[p] = true
		wanted[filepath.Dir(p)] = true
	}
	if w.watcher == nil {
		return
	}

	for dir := range w.dirs {
		if !wanted[dir] {
			_ = w.watcher.Remove(dir)
			delete(w.dirs, dir)
		}
	}
	for dir := range wanted {
		w.add(dir)
	}
}

func (w *sourceWatcher) add(dir string) {
	if w.dirs[dir] {
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		w.loader.logger.Debug().Err(err).Str("dir", dir).Msg("cannot watch config directory, polling")
		w.startPolling()
		return
	}
	w.dirs[dir] = true
}

func (w *sourceWatcher) startPolling() {
	if w.ticker != nil {
		return
	}
	w.ticker = time.NewTicker(w.interval)
}

// wait blocks until a source may have changed, then lets the change settle.
// It returns false when ctx is done.
func (w *sourceWatcher) wait(ctx context.Context) bool {
	var events <-chan fsnotify.Event
	var errs <-chan error
	if w.watcher != nil {
		events, errs = w.watcher.Events, w.watcher.Errors
	}
	var tick <-chan time.Time
	if w.ticker != nil {
		tick = w.ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-tick:
			return w.settle(ctx)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.loader.logger.Warn().Err(err).Msg("config watch error, polling")
			w.startPolling()
			tick = w.ticker.C
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if w.relevant(ev) {
				return w.settle(ctx)
			}
		}
	}
}

// relevant reports whether ev touches a source. A watched directory that
// was renamed or removed is re-added, as atomic-save editors and
// redeploys replace whole paths.
func (w *sourceWatcher) relevant(ev fsnotify.Event) bool {
	name := filepath.Clean(ev.Name)
	replaced := ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)
	if w.dirs[name] && replaced {
		delete(w.dirs, name)
		w.add(name)
		return true
	}
	if !w.paths[name] {
		return false
	}
	if replaced {
		w.add(filepath.Dir(name))
	}
	return true
}

// settle waits out the debounce window. Events it covers only keep the
// watched directories current.
func (w *sourceWatcher) settle(ctx context.Context) bool {
	var events <-chan fsnotify.Event
	if w.watcher != nil {
		events = w.watcher.Events
	}
	timer := time.NewTimer(watchDebounce)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			w.relevant(ev)
		}
	}
}

func (w *sourceWatcher) close() {
	if w.ticker != nil {
		w.ticker.Stop()
	}
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
}

// restamp records the current state of the files in sources.
func restamp(sources []SourceStamp) []SourceStamp {
	out := make([]SourceStamp, 0, len(sources))
	for _, s := range sources {
		info, err := os.Stat(s.Path)
		if err != nil {
			out = append(out, SourceStamp{Path: s.Path, Missing: true})
			continue
		}
		data, err := os.ReadFile(s.Path)
		if err != nil {
			out = append(out, SourceStamp{Path: s.Path, Missing: true})
			continue
		}
		sum := blake3.Sum256(data)
		out = append(out, SourceStamp{Path: s.Path, ModTime: info.ModTime().UnixNano(), Hash: sum[:]})
	}
	return out
}
