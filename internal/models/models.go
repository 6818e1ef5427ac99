package models

import (
	"time"
)

// DefaultListName is the list todos go to when none is given.
const DefaultListName = "Inbox"

// List groups todos. Rows mirror the remote "lists" table.
type List struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Todo is a single item. Rows mirror the remote "todos" table.
type Todo struct {
	ID          string     `json:"id"`
	ListID      string     `json:"list_id"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CompletedBy string     `json:"completed_by,omitempty"`
}

// ListSummary is a list with its todo counts
type ListSummary struct {
	List
	Total int `json:"total"`
	Done  int `json:"done"`
}

// TodoFilter selects todos for listing
type TodoFilter struct {
	ListID      string
	IncludeDone bool
	OnlyDone    bool
	Search      string
}

// DiscardedOperation is a queued write the remote store rejected for good.
type DiscardedOperation struct {
	ID          int64     `json:"id"`
	TxID        int64     `json:"tx_id"`
	Op          string    `json:"op"`
	Table       string    `json:"table"`
	RowID       string    `json:"row_id"`
	Data        string    `json:"data,omitempty"`
	Code        string    `json:"code,omitempty"`
	Message     string    `json:"message"`
	Skipped     int       `json:"skipped"`
	DiscardedAt time.Time `json:"discarded_at"`
}

// UploadState summarizes the local queue for `tdo sync --status`.
type UploadState struct {
	PendingTransactions int        `json:"pending_transactions"`
	PendingOps          int        `json:"pending_ops"`
	LastTxID            int64      `json:"last_tx_id"`
	LastUploadAt        *time.Time `json:"last_upload_at,omitempty"`
	Discarded           int        `json:"discarded"`
}
