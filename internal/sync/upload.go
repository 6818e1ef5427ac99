package sync

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
)

// Uploader replays pending local transactions against a remote store.
// It processes one transaction per call and never runs operations in
// parallel; callers must not invoke it concurrently for the same queue.
type Uploader struct {
	// OnDiscard is called after a transaction is acknowledged despite a
	// fatal failure. Optional.
	OnDiscard func(ctx context.Context, d Discard)
}

// NewUploader returns an Uploader with no discard hook.
func NewUploader() *Uploader {
	return &Uploader{}
}

// outcome is the result of replaying a transaction: either every operation
// was applied (err == nil) or the op at index failed with the given severity.
type outcome struct {
	index    int
	err      error
	severity Severity
}

func (o outcome) applied() bool { return o.err == nil }

// UploadData drains the next pending transaction from q into store.
//
// Transient failures are returned unchanged and leave the transaction in the
// queue. Fatal failures are logged, reported through OnDiscard, and the
// transaction is completed so the queue cannot block on it forever.
func (u *Uploader) UploadData(ctx context.Context, store RemoteStore, q Queue) error {
	tx, err := q.NextPendingTransaction(ctx)
	if err != nil {
		return fmt.Errorf("next pending transaction: %w", err)
	}
	if tx == nil {
		return nil
	}

	res := u.replay(ctx, store, tx)
	if res.applied() {
		if err := tx.Complete(ctx); err != nil {
			return fmt.Errorf("complete transaction %d: %w", tx.TxID, err)
		}
		slog.Debug("upload: transaction applied", "tx", tx.TxID, "ops", len(tx.Operations))
		return nil
	}

	failed := tx.Operations[res.index]
	if res.severity == Transient {
		slog.Debug("upload: transient failure", "tx", tx.TxID, "op", failed.String(), "err", res.err)
		return res.err
	}

	d := Discard{
		TxID:      tx.TxID,
		Operation: failed,
		Index:     res.index,
		Skipped:   len(tx.Operations) - res.index - 1,
		Err:       res.err,
	}
	slog.Error("upload: discarding unrecoverable operation",
		"tx", tx.TxID, "op", failed.String(), "index", d.Index, "skipped", d.Skipped, "err", res.err)
	if u.OnDiscard != nil {
		u.OnDiscard(ctx, d)
	}
	if err := tx.Complete(ctx); err != nil {
		return fmt.Errorf("complete discarded transaction %d: %w", tx.TxID, err)
	}
	return nil
}

// replay applies operations strictly in order and stops at the first failure.
func (u *Uploader) replay(ctx context.Context, store RemoteStore, tx *PendingTransaction) outcome {
	for i, op := range tx.Operations {
		if err := apply(ctx, store, op); err != nil {
			return outcome{index: i, err: err, severity: Classify(err)}
		}
	}
	return outcome{}
}

func apply(ctx context.Context, store RemoteStore, op PendingOperation) error {
	switch op.Op {
	case OpPut:
		record := make(map[string]any, len(op.Data)+1)
		maps.Copy(record, op.Data)
		record["id"] = op.ID
		return store.From(op.Table).Upsert(ctx, record)
	case OpPatch:
		return store.From(op.Table).Update(ctx, op.ID, op.Data)
	case OpDelete:
		return store.From(op.Table).Delete(ctx, op.ID)
	default:
		return &UnsupportedOperationError{Op: op.Op}
	}
}
