// Package sqlite keeps the commit journal in a local SQLite file for
// deployments without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"users-service/internal/application"
	"users-service/internal/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ application.CommitJournal = (*Journal)(nil)

// Timestamps are unix nanoseconds so ORDER BY follows time order.
const schema = `
CREATE TABLE IF NOT EXISTS commit_journal (
	tx_id        TEXT PRIMARY KEY,
	entities     INTEGER NOT NULL,
	started_at   INTEGER NOT NULL,
	committed_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS commit_journal_changes (
	tx_id     TEXT NOT NULL REFERENCES commit_journal(tx_id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	entity_id TEXT NOT NULL,
	op        TEXT NOT NULL,
	PRIMARY KEY (tx_id, seq)
);`

type Journal struct {
	db *sql.DB
}

func Open(path string) (*Journal, error) {
	if path == "" {
		path = "journal.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal tables: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error                   { return j.db.Close() }
func (j *Journal) Ping(ctx context.Context) error { return j.db.PingContext(ctx) }

func (j *Journal) Record(ctx context.Context, rec domain.CommitRecord) (retErr error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO commit_journal(tx_id, entities, started_at, committed_at) VALUES (?, ?, ?, ?)`,
		rec.TxID, rec.Entities, rec.StartedAt.UnixNano(), rec.CommittedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert commit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// already journaled
		return tx.Commit()
	}
	for i, c := range rec.Changes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO commit_journal_changes(tx_id, seq, entity_id, op) VALUES (?, ?, ?, ?)`,
			rec.TxID, i, c.EntityID, string(c.Op)); err != nil {
			return fmt.Errorf("insert change: %w", err)
		}
	}
	return tx.Commit()
}

// ChangesFor lists the recorded operations on one entity, oldest first.
func (j *Journal) ChangesFor(ctx context.Context, entityID string) ([]domain.Change, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT c.entity_id, c.op
		FROM commit_journal_changes c
		JOIN commit_journal j ON j.tx_id = c.tx_id
		WHERE c.entity_id = ?
		ORDER BY j.committed_at, j.rowid, c.seq`, entityID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Change
	for rows.Next() {
		var c domain.Change
		var op string
		if err := rows.Scan(&c.EntityID, &op); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		c.Op = domain.ChangeOp(op)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the number of journaled commits.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commit_journal`).Scan(&n)
	return n, err
}
