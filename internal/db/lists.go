package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/marcus/tdo/internal/models"
)

const listsTable = "lists"

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func listPayload(l *models.List) map[string]any {
	return map[string]any{
		"name":       l.Name,
		"owner_id":   userRef(l.OwnerID),
		"created_at": l.CreatedAt.UTC().Format(timeText),
	}
}

func (db *DB) insertList(ctx context.Context, rec *recorder, name, owner string) (*models.List, error) {
	now := db.now().UTC()
	l := &models.List{ID: uuid.NewString(), Name: name, OwnerID: owner, CreatedAt: now}
	_, err := rec.tx.ExecContext(ctx,
		`INSERT INTO lists (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)`,
		l.ID, l.Name, l.OwnerID, now.Format(timeText))
	if err != nil {
		return nil, fmt.Errorf("insert list: %w", err)
	}
	return l, rec.put(ctx, listsTable, l.ID, listPayload(l))
}

// CreateList adds a list owned by owner.
func (db *DB) CreateList(ctx context.Context, name, owner string) (*models.List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("list name is required")
	}
	var l *models.List
	err := db.mutate(ctx, func(rec *recorder) error {
		existing, err := listByName(ctx, rec.tx, name)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if existing != nil {
			return fmt.Errorf("list %q already exists", name)
		}
		l, err = db.insertList(ctx, rec, name, owner)
		return err
	})
	return l, err
}

// RenameList changes a list's name.
func (db *DB) RenameList(ctx context.Context, ref, name string) (*models.List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("list name is required")
	}
	var l *models.List
	err := db.mutate(ctx, func(rec *recorder) error {
		var err error
		if l, err = findList(ctx, rec.tx, ref); err != nil {
			return err
		}
		existing, err := listByName(ctx, rec.tx, name)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if existing != nil && existing.ID != l.ID {
			return fmt.Errorf("list %q already exists", existing.Name)
		}
		if l.Name == name {
			return nil
		}
		if _, err := rec.tx.ExecContext(ctx, `UPDATE lists SET name = ? WHERE id = ?`, name, l.ID); err != nil {
			return err
		}
		l.Name = name
		return rec.patch(ctx, listsTable, l.ID, map[string]any{"name": name})
	})
	return l, err
}

// DeleteList removes a list and its todos. Todo deletes are queued before
// the list delete so the remote foreign key is never violated.
func (db *DB) DeleteList(ctx context.Context, ref string) (*models.List, int, error) {
	var l *models.List
	var removed int
	err := db.mutate(ctx, func(rec *recorder) error {
		var err error
		if l, err = findList(ctx, rec.tx, ref); err != nil {
			return err
		}
		ids, err := todoIDsInList(ctx, rec.tx, l.ID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := rec.tx.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id); err != nil {
				return err
			}
			if err := rec.delete(ctx, todosTable, id); err != nil {
				return err
			}
		}
		if _, err := rec.tx.ExecContext(ctx, `DELETE FROM lists WHERE id = ?`, l.ID); err != nil {
			return err
		}
		removed = len(ids)
		return rec.delete(ctx, listsTable, l.ID)
	})
	return l, removed, err
}

// GetList resolves ref as an exact name (case-insensitive), full id or id prefix.
func (db *DB) GetList(ctx context.Context, ref string) (*models.List, error) {
	return findList(ctx, db.conn, ref)
}

// ListLists returns every list with todo counts, oldest first.
func (db *DB) ListLists(ctx context.Context) ([]models.ListSummary, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT l.id, l.name, l.owner_id, l.created_at,
		       COUNT(t.id), COALESCE(SUM(t.completed), 0)
		FROM lists l LEFT JOIN todos t ON t.list_id = l.id
		GROUP BY l.id
		ORDER BY l.created_at, l.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ListSummary
	for rows.Next() {
		var s models.ListSummary
		var created string
		if err := rows.Scan(&s.ID, &s.Name, &s.OwnerID, &created, &s.Total, &s.Done); err != nil {
			return nil, err
		}
		if s.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func findList(ctx context.Context, q querier, ref string) (*models.List, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("list %w", ErrNotFound)
	}
	const cols = `SELECT id, name, owner_id, created_at FROM lists `

	l, err := scanList(q.QueryRowContext(ctx, cols+`WHERE id = ? OR name = ? COLLATE NOCASE ORDER BY id = ? DESC LIMIT 1`, ref, ref, ref))
	if err == nil || !errors.Is(err, ErrNotFound) {
		return l, err
	}

	id, err := resolvePrefix(ctx, q, listsTable, ref)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", ref, err)
	}
	return scanList(q.QueryRowContext(ctx, cols+`WHERE id = ?`, id))
}

func listByName(ctx context.Context, q querier, name string) (*models.List, error) {
	return scanList(q.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at FROM lists WHERE name = ? COLLATE NOCASE ORDER BY created_at LIMIT 1`, name))
}

func scanList(row *sql.Row) (*models.List, error) {
	var l models.List
	var created string
	err := row.Scan(&l.ID, &l.Name, &l.OwnerID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if l.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &l, nil
}

// resolvePrefix expands an id prefix to the single id in table it matches.
func resolvePrefix(ctx context.Context, q querier, table, prefix string) (string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id FROM `+table+` WHERE substr(id, 1, length(?)) = ? ORDER BY id LIMIT 2`, prefix, prefix)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", ErrNotFound
	case 1:
		return ids[0], nil
	default:
		return "", ErrAmbiguous
	}
}
