package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingQueue models a queue of transactions head+1 .. head+pending.
type countingQueue struct {
	mu      stdsync.Mutex
	head    int64
	pending int
	uploads int
	fail    []error // consumed one per upload call
	stuck   bool    // upload succeeds without draining

	// afterUpload runs inside a successful upload, with q locked.
	afterUpload func(q *countingQueue)
}

func (q *countingQueue) OldestPendingTxID(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == 0 {
		return 0, nil
	}
	return q.head + 1, nil
}

func (q *countingQueue) upload(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.uploads++
	if len(q.fail) > 0 {
		err := q.fail[0]
		q.fail = q.fail[1:]
		if err != nil {
			return err
		}
	}
	if !q.stuck && q.pending > 0 {
		q.pending--
		q.head++
	}
	if q.afterUpload != nil {
		q.afterUpload(q)
	}
	return nil
}

func (q *countingQueue) snapshot() (pending, uploads int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending, q.uploads
}

func TestDrain_EmptiesQueue(t *testing.T) {
	q := &countingQueue{pending: 3}
	r := NewRunner(RunnerConfig{}, q.upload, q)

	n, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	pending, uploads := q.snapshot()
	assert.Equal(t, 0, pending)
	assert.Equal(t, 3, uploads)
}

func TestDrain_NothingPendingSkipsUpload(t *testing.T) {
	q := &countingQueue{}
	r := NewRunner(RunnerConfig{}, q.upload, q)

	n, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	_, uploads := q.snapshot()
	assert.Zero(t, uploads)
}

func TestDrain_StopsOnError(t *testing.T) {
	boom := errors.New("503")
	q := &countingQueue{pending: 3, fail: []error{nil, boom}}
	r := NewRunner(RunnerConfig{}, q.upload, q)

	n, err := r.Drain(context.Background())
	assert.Same(t, boom, err)
	assert.Equal(t, 1, n)
	pending, _ := q.snapshot()
	assert.Equal(t, 2, pending)
}

func TestDrain_NoProgress(t *testing.T) {
	q := &countingQueue{pending: 1, stuck: true}
	r := NewRunner(RunnerConfig{}, q.upload, q)

	_, err := r.Drain(context.Background())
	assert.ErrorIs(t, err, ErrNoProgress)
}

func TestDrain_ConcurrentWriteDuringUpload(t *testing.T) {
	// Another process queues a transaction while the only pending one
	// uploads, so the pending count stays at 1.
	q := &countingQueue{pending: 1}
	q.afterUpload = func(q *countingQueue) {
		if q.uploads == 1 {
			q.pending++
		}
	}
	r := NewRunner(RunnerConfig{}, q.upload, q)

	n, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	pending, uploads := q.snapshot()
	assert.Zero(t, pending)
	assert.Equal(t, 2, uploads)
}

func TestDrain_HoldsLock(t *testing.T) {
	q := &countingQueue{pending: 1}
	var acquired, released int
	cfg := RunnerConfig{Lock: func(context.Context) (func(), error) {
		acquired++
		return func() { released++ }, nil
	}}

	_, err := NewRunner(cfg, q.upload, q).Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, released)
}

func TestDrain_LockError(t *testing.T) {
	q := &countingQueue{pending: 1}
	cfg := RunnerConfig{Lock: func(context.Context) (func(), error) {
		return nil, errors.New("held by pid 42")
	}}

	_, err := NewRunner(cfg, q.upload, q).Drain(context.Background())
	require.Error(t, err)
	_, uploads := q.snapshot()
	assert.Zero(t, uploads)
}

func TestRun_RetriesTransientFailures(t *testing.T) {
	q := &countingQueue{pending: 2, fail: []error{errors.New("offline"), errors.New("offline")}}
	cfg := RunnerConfig{BackoffMin: 5 * time.Millisecond, BackoffMax: 20 * time.Millisecond}
	r := NewRunner(cfg, q.upload, q)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	assert.Eventually(t, func() bool {
		pending, _ := q.snapshot()
		return pending == 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	_, uploads := q.snapshot()
	assert.Equal(t, 4, uploads)
}

func TestRun_IntervalPicksUpNewWork(t *testing.T) {
	q := &countingQueue{}
	r := NewRunner(RunnerConfig{Interval: 5 * time.Millisecond}, q.upload, q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	q.mu.Lock()
	q.pending = 2
	q.mu.Unlock()

	assert.Eventually(t, func() bool {
		pending, _ := q.snapshot()
		return pending == 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestNextBackoff(t *testing.T) {
	lo, hi := time.Second, 8*time.Second
	assert.Equal(t, lo, nextBackoff(0, lo, hi))
	assert.Equal(t, 2*time.Second, nextBackoff(lo, lo, hi))
	assert.Equal(t, hi, nextBackoff(6*time.Second, lo, hi))
	assert.Equal(t, hi, nextBackoff(hi, lo, hi))
}
