// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
	RegisterBackend("sqlite", newSQLiteAdapter)
}

// sqliteAdapter persists embeddings in a vec0 virtual table with a companion
// metadata table. The vec0 table is declared with a cosine distance metric,
// so KNN distance order is similarity order and scores are 1 - distance.
type sqliteAdapter struct {
	db         *sql.DB
	dimensions int
	closed     atomic.Bool
}

func newSQLiteAdapter(ctx context.Context, dimensions int, opts map[string]string) (Adapter, error) {
	if err := rejectUnknownOptions("sqlite", opts, "path"); err != nil {
		return nil, err
	}
	if err := requireOptions("sqlite", opts, "path"); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", opts["path"]+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
			"opening sqlite db", scenioerr.FieldBackend("sqlite"))
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
			"pinging sqlite db", scenioerr.FieldBackend("sqlite"))
	}

	if err := migrateVector(ctx, db, dimensions); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &sqliteAdapter{db: db, dimensions: dimensions}, nil
}

func migrateVector(ctx context.Context, db *sql.DB, dimensions int) error {
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d] distance_metric=cosine)`,
		dimensions,
	)
	if _, err := db.ExecContext(ctx, vecDDL); err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
			"creating vectors virtual table", scenioerr.FieldBackend("sqlite"))
	}

	const metaDDL = `
CREATE TABLE IF NOT EXISTS vector_metadata (
	id       TEXT PRIMARY KEY,
	metadata TEXT NOT NULL DEFAULT '{}'
)`
	if _, err := db.ExecContext(ctx, metaDDL); err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
			"creating vector_metadata table", scenioerr.FieldBackend("sqlite"))
	}
	return nil
}

func (a *sqliteAdapter) Name() string    { return "sqlite" }
func (a *sqliteAdapter) Dimensions() int { return a.dimensions }

func (a *sqliteAdapter) guard() error {
	if a.closed.Load() {
		return scenioerr.New(scenioerr.CodeVectorAdapterClosed,
			"vector adapter is closed", scenioerr.FieldBackend("sqlite"))
	}
	return nil
}

func (a *sqliteAdapter) Insert(ctx context.Context, rec Record) error {
	if err := a.guard(); err != nil {
		return err
	}
	if err := checkDimensions(a.dimensions, rec.Embedding, rec.ID); err != nil {
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(rec.Embedding)
	if err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeVectorQueryInvalid,
			"serializing embedding", scenioerr.FieldID(rec.ID))
	}

	metaJSON := []byte("{}")
	if len(rec.Metadata) > 0 {
		metaJSON, err = json.Marshal(rec.Metadata)
		if err != nil {
			return scenioerr.Wrap(err, scenioerr.CodeVectorQueryInvalid,
				"encoding metadata", scenioerr.FieldID(rec.ID))
		}
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
			"beginning transaction", scenioerr.FieldBackend("sqlite"))
	}
	defer func() { _ = tx.Rollback() }()

	// vec0 does not support ON CONFLICT; delete first for upsert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, rec.ID); err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
			"deleting existing vector", scenioerr.FieldID(rec.ID))
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO vectors(id, embedding) VALUES (?, ?)`, rec.ID, blob); err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
			"inserting vector", scenioerr.FieldID(rec.ID))
	}

	const metaQ = `INSERT INTO vector_metadata(id, metadata) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET metadata = excluded.metadata`
	if _, err := tx.ExecContext(ctx, metaQ, rec.ID, string(metaJSON)); err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
			"upserting vector metadata", scenioerr.FieldID(rec.ID))
	}

	if err := tx.Commit(); err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
			"committing vector insert", scenioerr.FieldID(rec.ID))
	}
	return nil
}

func (a *sqliteAdapter) InsertBatch(ctx context.Context, recs []Record) ([]RecordStatus, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}

	statuses := make([]RecordStatus, len(recs))
	for i, rec := range recs {
		statuses[i] = RecordStatus{ID: rec.ID, Err: a.Insert(ctx, rec)}
	}
	return statuses, nil
}

func (a *sqliteAdapter) Search(ctx context.Context, query []float32, k int, opts SearchOptions) ([]SearchResult, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	if err := checkQuery(a.dimensions, query, k); err != nil {
		return nil, err
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeVectorQueryInvalid, "serializing query vector")
	}

	// KNN order is similarity order, so a similarity floor alone never
	// needs more than k candidates. A metadata filter runs after the KNN
	// scan, so it widens the fetch to the full table to keep recall exact.
	fetchK := k
	if !opts.Filter.IsEmpty() {
		total, err := a.Count(ctx)
		if err != nil {
			return nil, err
		}
		if total == 0 {
			return nil, nil
		}
		fetchK = int(total)
	}

	const q = `SELECT v.id, v.distance, COALESCE(m.metadata, '{}')
FROM vectors v
LEFT JOIN vector_metadata m ON m.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance, v.id`

	rows, err := a.db.QueryContext(ctx, q, blob, fetchK)
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
			"searching vectors", scenioerr.FieldBackend("sqlite"))
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var (
			id       string
			distance float32
			metaStr  string
		)
		if err := rows.Scan(&id, &distance, &metaStr); err != nil {
			return nil, scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
				"scanning vector result", scenioerr.FieldBackend("sqlite"))
		}

		var metadata map[string]any
		if metaStr != "" && metaStr != "{}" {
			if err := json.Unmarshal([]byte(metaStr), &metadata); err != nil {
				return nil, scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
					"decoding vector metadata", scenioerr.FieldID(id))
			}
		}
		if !opts.Filter.Matches(metadata) {
			continue
		}

		score := 1 - distance
		if score < opts.MinCertainty {
			// Results arrive best-first; everything after is worse.
			break
		}

		results = append(results, SearchResult{ID: id, Score: score, Metadata: metadata})
		if len(results) == k {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
			"iterating vector results", scenioerr.FieldBackend("sqlite"))
	}
	return results, nil
}

func (a *sqliteAdapter) Delete(ctx context.Context, ids []string) error {
	if err := a.guard(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
			"beginning transaction", scenioerr.FieldBackend("sqlite"))
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
			"deleting vectors", scenioerr.FieldBackend("sqlite"))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vector_metadata WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
			"deleting vector metadata", scenioerr.FieldBackend("sqlite"))
	}

	if err := tx.Commit(); err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
			"committing vector delete", scenioerr.FieldBackend("sqlite"))
	}
	return nil
}

func (a *sqliteAdapter) Count(ctx context.Context) (int64, error) {
	if err := a.guard(); err != nil {
		return 0, err
	}

	var n int64
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&n); err != nil {
		return 0, scenioerr.Wrap(err, scenioerr.CodeVectorConnectionFailure,
			"counting vectors", scenioerr.FieldBackend("sqlite"))
	}
	return n, nil
}

func (a *sqliteAdapter) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	return a.db.Close()
}
