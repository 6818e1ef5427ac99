package sync

import (
	"context"
	"fmt"
)

// OpKind is the kind of a locally queued write.
type OpKind string

const (
	OpPut    OpKind = "PUT"
	OpPatch  OpKind = "PATCH"
	OpDelete OpKind = "DELETE"
)

// PendingOperation is a single local write waiting to be replayed remotely.
type PendingOperation struct {
	ClientID int64 // crud_queue rowid
	Table    string
	Op       OpKind
	ID       string
	Data     map[string]any // nil for DELETE
}

func (op PendingOperation) String() string {
	return fmt.Sprintf("%s %s/%s", op.Op, op.Table, op.ID)
}

// PendingTransaction is an ordered batch of local writes produced by one
// local database transaction. The uploader borrows it and never mutates it.
type PendingTransaction struct {
	TxID       int64
	Operations []PendingOperation

	complete func(ctx context.Context) error
}

// NewPendingTransaction builds a transaction whose Complete calls complete.
func NewPendingTransaction(txID int64, ops []PendingOperation, complete func(ctx context.Context) error) *PendingTransaction {
	return &PendingTransaction{TxID: txID, Operations: ops, complete: complete}
}

// Complete acknowledges the transaction and removes it from the local queue.
func (t *PendingTransaction) Complete(ctx context.Context) error {
	if t.complete == nil {
		return nil
	}
	return t.complete(ctx)
}

// Queue supplies pending local transactions in commit order.
// NextPendingTransaction returns nil when nothing is pending.
type Queue interface {
	NextPendingTransaction(ctx context.Context) (*PendingTransaction, error)
}

// RemoteStore selects a remote table by name.
type RemoteStore interface {
	From(table string) RemoteTable
}

// RemoteTable is the per-table handle of the remote relational store.
// Failures reported by the store itself should be *RemoteError so they can
// be classified; transport failures may be any error.
type RemoteTable interface {
	Upsert(ctx context.Context, record map[string]any) error
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
}

// Discard describes an operation dropped because it can never succeed.
type Discard struct {
	TxID      int64
	Operation PendingOperation
	Index     int // position of the failed op within the transaction
	Skipped   int // operations after it that were never attempted
	Err       error
}
