package gogit

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/switchyard/internal/log"
)

// changeDebounce collapses the burst of filesystem events a single checkout
// or commit produces into one change notification.
const changeDebounce = 200 * time.Millisecond

// refWatcher watches .git/HEAD and .git/refs/heads for tracked repositories
// and reports debounced per-repository changes.
type refWatcher struct {
	fs       *fsnotify.Watcher
	onChange func(root string, gone bool)

	mu     sync.Mutex
	roots  map[string]string // watched dir -> repository root
	timers map[string]*time.Timer
	done   chan struct{}
}

func newRefWatcher(onChange func(root string, gone bool)) (*refWatcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &refWatcher{
		fs:       fs,
		onChange: onChange,
		roots:    make(map[string]string),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// watch registers the git metadata directories of the repository at root.
func (w *refWatcher) watch(root string) error {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil {
		return err
	}
	// Linked worktrees keep a .git file pointing elsewhere; watching the
	// containing directory still catches HEAD rewrites there.
	dirs := []string{gitDir}
	if info.IsDir() {
		refsDir := filepath.Join(gitDir, "refs", "heads")
		if _, err := os.Stat(refsDir); err == nil {
			dirs = append(dirs, refsDir)
		}
	} else {
		dirs = []string{root}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, dir := range dirs {
		if err := w.fs.Add(dir); err != nil {
			return err
		}
		w.roots[dir] = root
	}
	return nil
}

func (w *refWatcher) close() error {
	close(w.done)
	return w.fs.Close()
}

func (w *refWatcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Warn(log.CatGit, "Filesystem watcher error", "error", err)
		}
	}
}

// handleEvent maps a raw filesystem event to a debounced repository change.
// Only ref-related files are considered; lock files churn constantly and are
// ignored.
func (w *refWatcher) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if strings.HasSuffix(base, ".lock") || strings.HasSuffix(base, ".tmp") {
		return
	}

	w.mu.Lock()
	root, ok := w.roots[filepath.Dir(event.Name)]
	w.mu.Unlock()
	if !ok {
		return
	}

	// The repository itself disappearing ends tracking.
	if base == ".git" && event.Op.Has(fsnotify.Remove) {
		if _, err := os.Stat(filepath.Join(root, ".git")); os.IsNotExist(err) {
			w.cancelTimer(root)
			w.onChange(root, true)
			return
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[root]; ok {
		timer.Reset(changeDebounce)
		return
	}
	w.timers[root] = time.AfterFunc(changeDebounce, func() {
		w.mu.Lock()
		delete(w.timers, root)
		w.mu.Unlock()
		w.onChange(root, false)
	})
}

func (w *refWatcher) cancelTimer(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[root]; ok {
		timer.Stop()
		delete(w.timers, root)
	}
}
