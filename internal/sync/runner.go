package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNoProgress is returned by Drain when an upload succeeded but left the
// same transaction at the head of the queue, which would otherwise loop
// forever.
var ErrNoProgress = errors.New("upload made no progress")

// PendingHead reports the oldest transaction waiting in the local queue.
// Transaction ids only grow, so a new head means the old one was completed
// even if other writers queued more work meanwhile.
type PendingHead interface {
	// OldestPendingTxID returns 0 when the queue is empty.
	OldestPendingTxID(ctx context.Context) (int64, error)
}

// RunnerConfig controls when the runner invokes the uploader.
type RunnerConfig struct {
	Debounce   time.Duration // delay after a local write before uploading
	Interval   time.Duration // periodic attempt even without local writes
	BackoffMin time.Duration // first retry delay after a transient failure
	BackoffMax time.Duration // retry delay cap

	// WatchDir and WatchFiles enable file-change triggers (e.g. the local
	// database and its WAL). Empty WatchDir disables watching.
	WatchDir   string
	WatchFiles []string

	// Lock, if set, is held for the duration of each drain so that only one
	// process uploads a given queue at a time.
	Lock func(ctx context.Context) (release func(), err error)
}

// Runner is the sync runtime around the upload bridge. It serializes
// upload calls: Drain and Run never call upload concurrently.
type Runner struct {
	cfg     RunnerConfig
	upload  func(ctx context.Context) error
	pending PendingHead
}

// NewRunner creates a runner that calls upload to drain one transaction at
// a time while pending reports work.
func NewRunner(cfg RunnerConfig, upload func(ctx context.Context) error, pending PendingHead) *Runner {
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = time.Second
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = cfg.BackoffMin
	}
	return &Runner{cfg: cfg, upload: upload, pending: pending}
}

// Drain uploads transactions until the queue is empty or an upload fails.
// It returns the number of transactions removed from the queue.
func (r *Runner) Drain(ctx context.Context) (int, error) {
	if r.cfg.Lock != nil {
		release, err := r.cfg.Lock(ctx)
		if err != nil {
			return 0, fmt.Errorf("acquire upload lock: %w", err)
		}
		defer release()
	}

	head, err := r.pending.OldestPendingTxID(ctx)
	if err != nil {
		return 0, fmt.Errorf("read queue head: %w", err)
	}

	drained := 0
	for head != 0 {
		if err := ctx.Err(); err != nil {
			return drained, err
		}
		if err := r.upload(ctx); err != nil {
			return drained, err
		}
		next, err := r.pending.OldestPendingTxID(ctx)
		if err != nil {
			return drained, fmt.Errorf("read queue head: %w", err)
		}
		if next == head {
			return drained, ErrNoProgress
		}
		drained++
		head = next
	}
	return drained, nil
}

// Run drains the queue immediately, then again after local writes (debounced),
// every Interval, and after a backoff delay when a drain fails. It returns
// when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	var changes <-chan struct{}
	if r.cfg.WatchDir != "" {
		w, err := watchFiles(r.cfg.WatchDir, r.cfg.WatchFiles...)
		if err != nil {
			return err
		}
		defer w.Close()
		changes = w.C()
	}

	var tick <-chan time.Time
	if r.cfg.Interval > 0 {
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	next := time.NewTimer(0)
	defer next.Stop()
	backoff := time.Duration(0)

	schedule := func(d time.Duration) {
		if !next.Stop() {
			select {
			case <-next.C:
			default:
			}
		}
		next.Reset(d)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			if backoff == 0 {
				schedule(r.cfg.Debounce)
			}
			continue
		case <-tick:
			if backoff > 0 {
				continue
			}
		case <-next.C:
		}

		n, err := r.Drain(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			backoff = nextBackoff(backoff, r.cfg.BackoffMin, r.cfg.BackoffMax)
			slog.Warn("sync: upload failed, will retry", "err", err, "retry_in", backoff)
			schedule(backoff)
			continue
		}
		backoff = 0
		if n > 0 {
			slog.Info("sync: uploaded", "transactions", n)
		}
	}
}

// nextBackoff doubles cur within [lo, hi].
func nextBackoff(cur, lo, hi time.Duration) time.Duration {
	if cur < lo {
		return lo
	}
	cur *= 2
	if cur > hi {
		cur = hi
	}
	return cur
}
