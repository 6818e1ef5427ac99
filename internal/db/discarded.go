package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/marcus/tdo/internal/models"
	tdsync "github.com/marcus/tdo/internal/sync"
)

// RecordDiscard keeps a copy of an operation the remote store rejected for
// good, so it can still be inspected after its transaction is completed.
func (db *DB) RecordDiscard(ctx context.Context, d tdsync.Discard) error {
	var data sql.NullString
	if d.Operation.Data != nil {
		b, err := json.Marshal(d.Operation.Data)
		if err != nil {
			return fmt.Errorf("encode discarded data: %w", err)
		}
		data = sql.NullString{String: string(b), Valid: true}
	}
	msg := ""
	if d.Err != nil {
		msg = d.Err.Error()
	}
	return db.withWriteLock(ctx, func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT INTO discarded_ops (tx_id, op, table_name, row_id, data, error_code, error_message, skipped, discarded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, d.TxID, string(d.Operation.Op), d.Operation.Table, d.Operation.ID, data,
			tdsync.CodeOf(d.Err), msg, d.Skipped, db.timestamp())
		return err
	})
}

// ListDiscarded returns discarded operations, newest first.
func (db *DB) ListDiscarded(ctx context.Context, limit int) ([]models.DiscardedOperation, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, tx_id, op, table_name, row_id, COALESCE(data, ''), error_code, error_message, skipped, discarded_at
		FROM discarded_ops ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DiscardedOperation
	for rows.Next() {
		var d models.DiscardedOperation
		var at string
		if err := rows.Scan(&d.ID, &d.TxID, &d.Op, &d.Table, &d.RowID, &d.Data, &d.Code, &d.Message, &d.Skipped, &at); err != nil {
			return nil, err
		}
		if d.DiscardedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
