package db

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	tdsync "github.com/marcus/tdo/internal/sync"
)

// recorder appends CRUD entries for one local write transaction.
type recorder struct {
	tx   *sql.Tx
	txID int64
	ops  int
}

func (r *recorder) put(ctx context.Context, table, id string, data map[string]any) error {
	return r.record(ctx, tdsync.OpPut, table, id, data)
}

func (r *recorder) patch(ctx context.Context, table, id string, data map[string]any) error {
	return r.record(ctx, tdsync.OpPatch, table, id, data)
}

func (r *recorder) delete(ctx context.Context, table, id string) error {
	return r.record(ctx, tdsync.OpDelete, table, id, nil)
}

func (r *recorder) record(ctx context.Context, op tdsync.OpKind, table, id string, data map[string]any) error {
	var payload sql.NullString
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode %s %s/%s: %w", op, table, id, err)
		}
		payload = sql.NullString{String: string(b), Valid: true}
	}
	_, err := r.tx.ExecContext(ctx,
		`INSERT INTO crud_queue (tx_id, op, table_name, row_id, data) VALUES (?, ?, ?, ?, ?)`,
		r.txID, string(op), table, id, payload)
	if err != nil {
		return fmt.Errorf("queue %s %s/%s: %w", op, table, id, err)
	}
	r.ops++
	return nil
}

// mutate runs fn in one SQL transaction under the write lock. Everything fn
// records becomes a single pending transaction; nothing is queued if fn
// records nothing.
func (db *DB) mutate(ctx context.Context, fn func(rec *recorder) error) error {
	return db.withWriteLock(ctx, func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer rollback(tx)

		res, err := tx.ExecContext(ctx, `INSERT INTO crud_tx (created_at) VALUES (?)`, db.timestamp())
		if err != nil {
			return fmt.Errorf("open crud transaction: %w", err)
		}
		txID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		rec := &recorder{tx: tx, txID: txID}
		if err := fn(rec); err != nil {
			return err
		}
		if rec.ops == 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM crud_tx WHERE id = ?`, txID); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// NextPendingTransaction returns the oldest queued transaction, or nil.
func (db *DB) NextPendingTransaction(ctx context.Context) (*tdsync.PendingTransaction, error) {
	var txID int64
	err := db.conn.QueryRowContext(ctx, `SELECT id FROM crud_tx ORDER BY id LIMIT 1`).Scan(&txID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, op, table_name, row_id, data FROM crud_queue WHERE tx_id = ? ORDER BY id`, txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []tdsync.PendingOperation
	for rows.Next() {
		var op tdsync.PendingOperation
		var kind string
		var data sql.NullString
		if err := rows.Scan(&op.ClientID, &kind, &op.Table, &op.ID, &data); err != nil {
			return nil, err
		}
		op.Op = tdsync.OpKind(kind)
		if data.Valid {
			if op.Data, err = decodePayload(data.String); err != nil {
				return nil, fmt.Errorf("decode crud entry %d: %w", op.ClientID, err)
			}
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tdsync.NewPendingTransaction(txID, ops, func(ctx context.Context) error {
		return db.completeTransaction(ctx, txID)
	}), nil
}

// completeTransaction removes txID's entries and records upload progress.
func (db *DB) completeTransaction(ctx context.Context, txID int64) error {
	return db.withWriteLock(ctx, func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer rollback(tx)

		if _, err := tx.ExecContext(ctx, `DELETE FROM crud_queue WHERE tx_id = ?`, txID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM crud_tx WHERE id = ?`, txID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sync_state (id, last_tx_id, last_upload_at) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET last_tx_id = excluded.last_tx_id, last_upload_at = excluded.last_upload_at
		`, txID, db.timestamp())
		if err != nil {
			return err
		}
		return tx.Commit()
	})
}

// OldestPendingTxID returns the id of the next transaction to upload, or 0.
func (db *DB) OldestPendingTxID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := db.conn.QueryRowContext(ctx, `SELECT MIN(id) FROM crud_tx`).Scan(&id)
	return id.Int64, err
}

// PendingTransactions counts transactions waiting for upload.
func (db *DB) PendingTransactions(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM crud_tx`).Scan(&n)
	return n, err
}

// CountPendingOps counts queued operations across all transactions.
func (db *DB) CountPendingOps(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM crud_queue`).Scan(&n)
	return n, err
}

// decodePayload keeps whole numbers as int64 so drivers bind them as integers.
func decodePayload(s string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	for k, v := range m {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			m[k] = i
		} else if f, err := n.Float64(); err == nil {
			m[k] = f
		}
	}
	return m, nil
}
