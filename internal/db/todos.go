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

const todosTable = "todos"

const todoColumns = `SELECT id, list_id, description, completed, created_at, completed_at, created_by, completed_by FROM todos `

// NewTodo is the input to AddTodo.
type NewTodo struct {
	ListRef     string // list name or id; empty uses the default list
	Description string
	CreatedBy   string
}

func todoPayload(t *models.Todo) map[string]any {
	var completedAt any
	if t.CompletedAt != nil {
		completedAt = t.CompletedAt.UTC().Format(timeText)
	}
	return map[string]any{
		"list_id":      t.ListID,
		"description":  t.Description,
		"completed":    t.Completed,
		"created_at":   t.CreatedAt.UTC().Format(timeText),
		"completed_at": completedAt,
		"created_by":   userRef(t.CreatedBy),
		"completed_by": userRef(t.CompletedBy),
	}
}

// AddTodo creates a todo. When the default list does not exist yet it is
// created in the same transaction, queued ahead of the todo.
func (db *DB) AddTodo(ctx context.Context, in NewTodo) (*models.Todo, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, fmt.Errorf("description is required")
	}

	var todo *models.Todo
	err := db.mutate(ctx, func(rec *recorder) error {
		list, err := db.listForAdd(ctx, rec, in.ListRef, in.CreatedBy)
		if err != nil {
			return err
		}

		now := db.now().UTC()
		todo = &models.Todo{
			ID:          uuid.NewString(),
			ListID:      list.ID,
			Description: desc,
			CreatedAt:   now,
			CreatedBy:   in.CreatedBy,
		}
		_, err = rec.tx.ExecContext(ctx, `
			INSERT INTO todos (id, list_id, description, completed, created_at, created_by)
			VALUES (?, ?, ?, 0, ?, ?)
		`, todo.ID, todo.ListID, todo.Description, now.Format(timeText), todo.CreatedBy)
		if err != nil {
			return fmt.Errorf("insert todo: %w", err)
		}
		return rec.put(ctx, todosTable, todo.ID, todoPayload(todo))
	})
	return todo, err
}

func (db *DB) listForAdd(ctx context.Context, rec *recorder, ref, owner string) (*models.List, error) {
	if ref != "" {
		return findList(ctx, rec.tx, ref)
	}
	l, err := listByName(ctx, rec.tx, models.DefaultListName)
	if errors.Is(err, ErrNotFound) {
		return db.insertList(ctx, rec, models.DefaultListName, owner)
	}
	return l, err
}

// GetTodo resolves ref as a full id or unique id prefix.
func (db *DB) GetTodo(ctx context.Context, ref string) (*models.Todo, error) {
	return findTodo(ctx, db.conn, ref)
}

// ListTodos returns todos matching f, open ones first, oldest first.
func (db *DB) ListTodos(ctx context.Context, f models.TodoFilter) ([]models.Todo, error) {
	var where []string
	var args []any
	if f.ListID != "" {
		where = append(where, "list_id = ?")
		args = append(args, f.ListID)
	}
	switch {
	case f.OnlyDone:
		where = append(where, "completed = 1")
	case !f.IncludeDone:
		where = append(where, "completed = 0")
	}
	if f.Search != "" {
		where = append(where, "description LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(f.Search)+"%")
	}

	query := todoColumns
	if len(where) > 0 {
		query += "WHERE " + strings.Join(where, " AND ") + " "
	}
	query += "ORDER BY completed, created_at, id"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// SetCompleted marks a todo done or not done. Unchanged todos queue nothing.
func (db *DB) SetCompleted(ctx context.Context, ref string, done bool, by string) (*models.Todo, error) {
	var todo *models.Todo
	err := db.mutate(ctx, func(rec *recorder) error {
		var err error
		if todo, err = findTodo(ctx, rec.tx, ref); err != nil {
			return err
		}
		if todo.Completed == done {
			return nil
		}

		todo.Completed = done
		if done {
			now := db.now().UTC()
			todo.CompletedAt = &now
			todo.CompletedBy = by
		} else {
			todo.CompletedAt = nil
			todo.CompletedBy = ""
		}

		var completedAt any
		if todo.CompletedAt != nil {
			completedAt = todo.CompletedAt.Format(timeText)
		}
		_, err = rec.tx.ExecContext(ctx,
			`UPDATE todos SET completed = ?, completed_at = ?, completed_by = ? WHERE id = ?`,
			boolInt(done), completedAt, todo.CompletedBy, todo.ID)
		if err != nil {
			return err
		}
		return rec.patch(ctx, todosTable, todo.ID, map[string]any{
			"completed":    done,
			"completed_at": completedAt,
			"completed_by": userRef(todo.CompletedBy),
		})
	})
	return todo, err
}

// EditTodo changes a todo's description.
func (db *DB) EditTodo(ctx context.Context, ref, description string) (*models.Todo, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("description is required")
	}
	var todo *models.Todo
	err := db.mutate(ctx, func(rec *recorder) error {
		var err error
		if todo, err = findTodo(ctx, rec.tx, ref); err != nil {
			return err
		}
		if todo.Description == description {
			return nil
		}
		if _, err := rec.tx.ExecContext(ctx, `UPDATE todos SET description = ? WHERE id = ?`, description, todo.ID); err != nil {
			return err
		}
		todo.Description = description
		return rec.patch(ctx, todosTable, todo.ID, map[string]any{"description": description})
	})
	return todo, err
}

// DeleteTodo removes a todo.
func (db *DB) DeleteTodo(ctx context.Context, ref string) (*models.Todo, error) {
	var todo *models.Todo
	err := db.mutate(ctx, func(rec *recorder) error {
		var err error
		if todo, err = findTodo(ctx, rec.tx, ref); err != nil {
			return err
		}
		if _, err := rec.tx.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, todo.ID); err != nil {
			return err
		}
		return rec.delete(ctx, todosTable, todo.ID)
	})
	return todo, err
}

func findTodo(ctx context.Context, q querier, ref string) (*models.Todo, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("todo %w", ErrNotFound)
	}
	id, err := resolvePrefix(ctx, q, todosTable, ref)
	if err != nil {
		return nil, fmt.Errorf("todo %q: %w", ref, err)
	}
	rows, err := q.QueryContext(ctx, todoColumns+`WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("todo %q: %w", ref, ErrNotFound)
	}
	return scanTodo(rows)
}

func todoIDsInList(ctx context.Context, q querier, listID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM todos WHERE list_id = ? ORDER BY created_at, id`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanTodo(rows *sql.Rows) (*models.Todo, error) {
	var t models.Todo
	var completed int
	var created string
	var completedAt sql.NullString
	err := rows.Scan(&t.ID, &t.ListID, &t.Description, &completed, &created, &completedAt, &t.CreatedBy, &t.CompletedBy)
	if err != nil {
		return nil, err
	}
	t.Completed = completed != 0
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if t.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
