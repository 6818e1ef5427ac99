package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	writeLockFile  = "db.lock"
	uploadLockFile = "upload.lock"

	writeLockTimeout = 500 * time.Millisecond
	initialBackoff   = 5 * time.Millisecond
	maxBackoff       = 50 * time.Millisecond
)

// ErrUploadInProgress is returned when another process holds the upload lock.
var ErrUploadInProgress = errors.New("another tdo process is uploading")

// fileLocker is an exclusive OS file lock. The OS drops it when the
// process exits, crashes included.
type fileLocker struct {
	path string
	file *os.File
}

func newFileLocker(dataDir, name string) *fileLocker {
	return &fileLocker{path: filepath.Join(dataDir, name)}
}

// acquire polls for the lock until ctx is done or timeout elapses.
// A zero timeout tries exactly once.
func (l *fileLocker) acquire(ctx context.Context, timeout time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	l.file = f

	deadline := time.Now().Add(timeout)
	backoff := initialBackoff
	for {
		if err := l.tryLock(); err == nil {
			l.writeHolder()
			return nil
		}
		if !time.Now().Before(deadline) {
			holder := l.readHolder()
			l.closeFile()
			return &lockTimeoutError{path: l.path, timeout: timeout, holder: holder}
		}
		select {
		case <-ctx.Done():
			l.closeFile()
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (l *fileLocker) release() {
	if l.file == nil {
		return
	}
	l.file.Truncate(0)
	l.unlock()
	l.closeFile()
}

func (l *fileLocker) closeFile() {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

func (l *fileLocker) writeHolder() {
	l.file.Truncate(0)
	l.file.Seek(0, 0)
	fmt.Fprintf(l.file, "pid:%d\ntime:%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	l.file.Sync()
}

// readHolder describes the process holding the lock, for error messages.
func (l *fileLocker) readHolder() string {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return "unknown"
	}
	var pid, since string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if v, ok := strings.CutPrefix(line, "pid:"); ok {
			pid = v
		} else if v, ok := strings.CutPrefix(line, "time:"); ok {
			since = v
		}
	}
	if pid == "" {
		return "unknown"
	}
	if n, err := strconv.Atoi(pid); err == nil && !isProcessAlive(n) {
		return fmt.Sprintf("pid:%s since %s (STALE - process dead)", pid, since)
	}
	return fmt.Sprintf("pid:%s since %s", pid, since)
}

type lockTimeoutError struct {
	path    string
	timeout time.Duration
	holder  string
}

func (e *lockTimeoutError) Error() string {
	return fmt.Sprintf("lock %s timeout after %v\n  holder: %s", filepath.Base(e.path), e.timeout, e.holder)
}

// withWriteLock runs fn while holding the cross-process write lock.
func (db *DB) withWriteLock(ctx context.Context, fn func() error) error {
	l := newFileLocker(db.dataDir, writeLockFile)
	if err := l.acquire(ctx, writeLockTimeout); err != nil {
		return err
	}
	defer l.release()
	return fn()
}

// AcquireUploadLock takes the lock that keeps two processes from draining
// the queue at once. It fails fast with ErrUploadInProgress when held.
func (db *DB) AcquireUploadLock(ctx context.Context) (release func(), err error) {
	l := newFileLocker(db.dataDir, uploadLockFile)
	if err := l.acquire(ctx, 0); err != nil {
		var timeout *lockTimeoutError
		if errors.As(err, &timeout) {
			return nil, fmt.Errorf("%w (%s)", ErrUploadInProgress, timeout.holder)
		}
		return nil, err
	}
	return l.release, nil
}
