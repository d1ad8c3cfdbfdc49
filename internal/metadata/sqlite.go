// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/mattn/go-sqlite3"

	"github.com/scenio-dev/scenio/internal/filter"
	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

func init() {
	RegisterBackend("sqlite", newSQLiteAdapter)
}

// sqliteAdapter persists documents in a single-table SQLite database.
// Documents are stored as JSON text and filtered server-side through the
// JSON1 json_extract function, so queries never load the full table.
type sqliteAdapter struct {
	db     *sql.DB
	closed atomic.Bool
}

func newSQLiteAdapter(ctx context.Context, opts map[string]string) (Adapter, error) {
	if err := rejectUnknownOptions("sqlite", opts, "path"); err != nil {
		return nil, err
	}
	if err := requireOptions("sqlite", opts, "path"); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", opts["path"]+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"opening sqlite db", scenioerr.FieldBackend("sqlite"))
	}

	schema := `CREATE TABLE IF NOT EXISTS documents (
		id  TEXT PRIMARY KEY,
		doc TEXT NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"initialising documents table", scenioerr.FieldBackend("sqlite"))
	}

	return &sqliteAdapter{db: db}, nil
}

func (a *sqliteAdapter) Name() string { return "sqlite" }

func (a *sqliteAdapter) guard() error {
	if a.closed.Load() {
		return scenioerr.New(scenioerr.CodeMetadataAdapterClosed,
			"metadata adapter is closed", scenioerr.FieldBackend("sqlite"))
	}
	return nil
}

func (a *sqliteAdapter) Insert(ctx context.Context, doc map[string]any) (string, error) {
	if err := a.guard(); err != nil {
		return "", err
	}
	id, body, err := claimID(doc)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", scenioerr.Wrap(err, scenioerr.CodeMetadataDocumentInvalid, "encoding document")
	}

	_, err = a.db.ExecContext(ctx, `INSERT INTO documents (id, doc) VALUES (?, ?)`, id, string(raw))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return "", scenioerr.New(scenioerr.CodeMetadataDocumentConflict,
				"document already exists", scenioerr.FieldID(id))
		}
		return "", scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"inserting document", scenioerr.FieldBackend("sqlite"), scenioerr.FieldID(id))
	}
	return id, nil
}

func (a *sqliteAdapter) Get(ctx context.Context, id string) (map[string]any, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}

	var raw string
	err := a.db.QueryRowContext(ctx, `SELECT doc FROM documents WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("sqlite", id)
	}
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"fetching document", scenioerr.FieldBackend("sqlite"), scenioerr.FieldID(id))
	}
	return decodeDoc(raw)
}

func (a *sqliteAdapter) Query(ctx context.Context, f filter.Filter, limit int) ([]Entry, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}

	where, args := sqlitePredicates(f)
	query := `SELECT id, doc FROM documents` + where + ` ORDER BY id`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"querying documents", scenioerr.FieldBackend("sqlite"))
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			id  string
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
				"scanning document row", scenioerr.FieldBackend("sqlite"))
		}
		doc, err := decodeDoc(raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{ID: id, Doc: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"iterating document rows", scenioerr.FieldBackend("sqlite"))
	}
	return entries, nil
}

func (a *sqliteAdapter) Update(ctx context.Context, id string, patch map[string]any) error {
	if err := a.guard(); err != nil {
		return err
	}

	raw, err := json.Marshal(patch)
	if err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeMetadataDocumentInvalid, "encoding patch")
	}

	// json_patch implements the same RFC 7386 merge the other backends do.
	res, err := a.db.ExecContext(ctx,
		`UPDATE documents SET doc = json_patch(doc, ?) WHERE id = ?`, string(raw), id)
	if err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"updating document", scenioerr.FieldBackend("sqlite"), scenioerr.FieldID(id))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"checking update result", scenioerr.FieldBackend("sqlite"), scenioerr.FieldID(id))
	}
	if affected == 0 {
		return notFound("sqlite", id)
	}
	return nil
}

func (a *sqliteAdapter) Delete(ctx context.Context, id string) error {
	if err := a.guard(); err != nil {
		return err
	}

	res, err := a.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"deleting document", scenioerr.FieldBackend("sqlite"), scenioerr.FieldID(id))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"checking delete result", scenioerr.FieldBackend("sqlite"), scenioerr.FieldID(id))
	}
	if affected == 0 {
		return notFound("sqlite", id)
	}
	return nil
}

func (a *sqliteAdapter) Count(ctx context.Context, f filter.Filter) (int64, error) {
	if err := a.guard(); err != nil {
		return 0, err
	}

	where, args := sqlitePredicates(f)
	var n int64
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`+where, args...).Scan(&n); err != nil {
		return 0, scenioerr.Wrap(err, scenioerr.CodeMetadataConnectionFailure,
			"counting documents", scenioerr.FieldBackend("sqlite"))
	}
	return n, nil
}

func (a *sqliteAdapter) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	return a.db.Close()
}

func decodeDoc(raw string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeMetadataDocumentInvalid, "decoding stored document")
	}
	return doc, nil
}

// sqlitePredicates translates a conjunction filter into a WHERE clause over
// json_extract expressions, preserving the in-memory matching semantics: a
// document missing the filtered field never matches, including for "ne".
func sqlitePredicates(f filter.Filter) (string, []any) {
	conds := f.Conditions()
	if len(conds) == 0 {
		return "", nil
	}

	var (
		clauses []string
		args    []any
	)
	for _, c := range conds {
		expr := fmt.Sprintf("json_extract(doc, '$.%s')", c.Field)
		switch c.Op {
		case filter.OpEq:
			clauses = append(clauses, expr+" = ?")
			args = append(args, c.Value)
		case filter.OpNe:
			clauses = append(clauses, expr+" IS NOT NULL AND "+expr+" != ?")
			args = append(args, c.Value)
		case filter.OpGt:
			clauses = append(clauses, expr+" > ?")
			args = append(args, c.Value)
		case filter.OpGte:
			clauses = append(clauses, expr+" >= ?")
			args = append(args, c.Value)
		case filter.OpLt:
			clauses = append(clauses, expr+" < ?")
			args = append(args, c.Value)
		case filter.OpLte:
			clauses = append(clauses, expr+" <= ?")
			args = append(args, c.Value)
		case filter.OpIn:
			values := filter.InValues(c.Value)
			if len(values) == 0 {
				clauses = append(clauses, "0")
				continue
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
			clauses = append(clauses, expr+" IN ("+placeholders+")")
			args = append(args, values...)
		default:
			clauses = append(clauses, "0")
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
