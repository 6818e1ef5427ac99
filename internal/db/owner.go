package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// userRef is how a user id goes into a queued payload. Locally "" means
// nobody; remotely the columns are nullable uuids, so "" is sent as null.
func userRef(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// ClaimUnowned assigns userID to everything written while signed out: the
// local rows and the payloads still waiting in the queue. It returns the
// number of queue entries rewritten.
func (db *DB) ClaimUnowned(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("claim: empty user id")
	}
	var rewritten int
	err := db.withWriteLock(ctx, func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer rollback(tx)

		for _, q := range []string{
			`UPDATE lists SET owner_id = ? WHERE owner_id = ''`,
			`UPDATE todos SET created_by = ? WHERE created_by = ''`,
			`UPDATE todos SET completed_by = ? WHERE completed = 1 AND completed_by = ''`,
		} {
			if _, err := tx.ExecContext(ctx, q, userID); err != nil {
				return fmt.Errorf("claim rows: %w", err)
			}
		}

		if rewritten, err = claimQueued(ctx, tx, userID); err != nil {
			return err
		}
		return tx.Commit()
	})
	return rewritten, err
}

type queuedEntry struct {
	id    int64
	table string
	data  string
}

func claimQueued(ctx context.Context, tx *sql.Tx, userID string) (int, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, table_name, data FROM crud_queue WHERE data IS NOT NULL AND table_name IN (?, ?) ORDER BY id`,
		listsTable, todosTable)
	if err != nil {
		return 0, fmt.Errorf("read queue: %w", err)
	}
	var entries []queuedEntry
	for rows.Next() {
		var e queuedEntry
		if err := rows.Scan(&e.id, &e.table, &e.data); err != nil {
			rows.Close()
			return 0, err
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	n := 0
	for _, e := range entries {
		var data map[string]any
		if err := json.Unmarshal([]byte(e.data), &data); err != nil {
			return n, fmt.Errorf("decode crud entry %d: %w", e.id, err)
		}
		if !stampOwner(e.table, data, userID) {
			continue
		}
		b, err := json.Marshal(data)
		if err != nil {
			return n, err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE crud_queue SET data = ? WHERE id = ?`, string(b), e.id); err != nil {
			return n, fmt.Errorf("rewrite crud entry %d: %w", e.id, err)
		}
		n++
	}
	return n, nil
}

// stampOwner fills ownership fields present but empty in data.
func stampOwner(table string, data map[string]any, userID string) bool {
	fill := func(key string) bool {
		v, ok := data[key]
		if !ok || (v != nil && v != "") {
			return false
		}
		data[key] = userID
		return true
	}

	switch table {
	case listsTable:
		return fill("owner_id")
	case todosTable:
		changed := fill("created_by")
		if done, _ := data["completed"].(bool); done && fill("completed_by") {
			changed = true
		}
		return changed
	}
	return false
}
