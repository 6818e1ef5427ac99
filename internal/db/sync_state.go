package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/marcus/tdo/internal/models"
)

// GetUploadState summarizes queued and completed uploads.
func (db *DB) GetUploadState(ctx context.Context) (*models.UploadState, error) {
	var s models.UploadState
	var err error
	if s.PendingTransactions, err = db.PendingTransactions(ctx); err != nil {
		return nil, err
	}
	if s.PendingOps, err = db.CountPendingOps(ctx); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM discarded_ops`).Scan(&s.Discarded); err != nil {
		return nil, err
	}

	var last sql.NullString
	err = db.conn.QueryRowContext(ctx, `SELECT last_tx_id, last_upload_at FROM sync_state WHERE id = 1`).Scan(&s.LastTxID, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return &s, nil
	}
	if err != nil {
		return nil, err
	}
	if s.LastUploadAt, err = parseNullTime(last); err != nil {
		return nil, err
	}
	return &s, nil
}
