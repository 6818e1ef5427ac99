// Package pgstore replays uploads directly against Postgres with pgx,
// for deployments that expose the database instead of a REST gateway.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	tdsync "github.com/marcus/tdo/internal/sync"
)

// execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store writes to tables in one schema.
type Store struct {
	db     execer
	schema string
	pool   *pgxpool.Pool
}

// Open connects a pool to dsn.
func Open(ctx context.Context, dsn, schema string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := New(pool, schema)
	s.pool = pool
	return s, nil
}

// New wraps an existing connection, pool or transaction.
func New(db execer, schema string) *Store {
	if schema == "" {
		schema = "public"
	}
	return &Store{db: db, schema: schema}
}

// Close releases the pool opened by Open.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// From selects a table.
func (s *Store) From(table string) tdsync.RemoteTable {
	return &pgTable{s: s, table: table}
}

type pgTable struct {
	s     *Store
	table string
}

func (t *pgTable) ident() string {
	return pgx.Identifier{t.s.schema, t.table}.Sanitize()
}

func quote(col string) string { return pgx.Identifier{col}.Sanitize() }

// sortedKeys gives deterministic column order so statements are cacheable.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func buildUpsert(table string, record map[string]any) (string, []any) {
	cols := sortedKeys(record)
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	args := make([]any, len(cols))
	var sets []string
	for i, c := range cols {
		names[i] = quote(c)
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = record[c]
		if c != "id" {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", quote(c), quote(c)))
		}
	}

	conflict := "DO NOTHING"
	if len(sets) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		table, strings.Join(names, ", "), strings.Join(params, ", "), quote("id"), conflict)
	return sql, args
}

func buildUpdate(table, id string, fields map[string]any) (string, []any) {
	cols := sortedKeys(fields)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", quote(c), i+1)
		args = append(args, fields[c])
	}
	args = append(args, id)
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		table, strings.Join(sets, ", "), quote("id"), len(args))
	return sql, args
}

func buildDelete(table, id string) (string, []any) {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table, quote("id")), []any{id}
}

func (t *pgTable) Upsert(ctx context.Context, record map[string]any) error {
	sql, args := buildUpsert(t.ident(), record)
	return t.exec(ctx, sql, args)
}

func (t *pgTable) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	sql, args := buildUpdate(t.ident(), id, fields)
	return t.exec(ctx, sql, args)
}

func (t *pgTable) Delete(ctx context.Context, id string) error {
	sql, args := buildDelete(t.ident(), id)
	return t.exec(ctx, sql, args)
}

func (t *pgTable) exec(ctx context.Context, sql string, args []any) error {
	_, err := t.s.db.Exec(ctx, sql, args...)
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &tdsync.RemoteError{
			Table:   t.table,
			Code:    pgErr.Code,
			Message: pgErr.Message,
			Details: pgErr.Detail,
			Hint:    pgErr.Hint,
			Err:     err,
		}
	}
	return err
}
