package sync

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fileWatcher signals on C whenever one of the watched files in a directory
// is written. Signals are coalesced: C has a buffer of one.
type fileWatcher struct {
	watcher *fsnotify.Watcher
	names   map[string]bool
	c       chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

// watchFiles watches dir for writes to any file whose base name starts with
// one of prefixes (so "tdo.db" also matches "tdo.db-wal").
func watchFiles(dir string, prefixes ...string) (*fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	fw := &fileWatcher{
		watcher: w,
		names:   make(map[string]bool, len(prefixes)),
		c:       make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, p := range prefixes {
		fw.names[p] = true
	}
	fw.wg.Add(1)
	go fw.loop()
	return fw, nil
}

func (fw *fileWatcher) C() <-chan struct{} { return fw.c }

func (fw *fileWatcher) matches(path string) bool {
	base := filepath.Base(path)
	for p := range fw.names {
		if strings.HasPrefix(base, p) {
			return true
		}
	}
	return false
}

func (fw *fileWatcher) loop() {
	defer fw.wg.Done()
	for {
		select {
		case <-fw.done:
			return
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !fw.matches(ev.Name) {
				continue
			}
			select {
			case fw.c <- struct{}{}:
			default:
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			slog.Debug("watch: fsnotify error", "err", err)
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (fw *fileWatcher) Close() error {
	close(fw.done)
	err := fw.watcher.Close()
	fw.wg.Wait()
	return err
}
