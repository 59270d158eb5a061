package pg

import (
	"context"
	"fmt"

	"users-service/internal/application"
	"users-service/internal/domain"
	"users-service/internal/infrastructure/logx"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var _ application.CommitJournal = (*JournalRepo)(nil)

type JournalRepo struct{ db *DB }

func NewJournalRepo(db *DB) *JournalRepo { return &JournalRepo{db: db} }

func (r *JournalRepo) Ping(ctx context.Context) error { return r.db.Ping(ctx) }

// Record writes the commit header and its changes atomically. Replaying the
// same TxID is a no-op.
func (r *JournalRepo) Record(ctx context.Context, rec domain.CommitRecord) error {
	const insCommit = `
        INSERT INTO commit_journal(tx_id, entities, started_at, committed_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (tx_id) DO NOTHING`
	const insChange = `
        INSERT INTO commit_journal_changes(tx_id, seq, entity_id, op)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (tx_id, seq) DO NOTHING`
	log := logx.L().With(
		zap.String("repo", "commit_journal"),
		zap.String("operation", "Record"),
		zap.String("tx_id", rec.TxID),
		zap.Int("changes", len(rec.Changes)),
	)
	log.Debug("sql.exec_start")
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insCommit, rec.TxID, rec.Entities, rec.StartedAt, rec.CommittedAt); err != nil {
			return fmt.Errorf("insert commit: %w", err)
		}
		if len(rec.Changes) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for i, c := range rec.Changes {
			batch.Queue(insChange, rec.TxID, i, c.EntityID, string(c.Op))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert changes: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Error("sql.exec_failed", zap.Error(err))
		return err
	}
	log.Debug("sql.exec_success")
	return nil
}

// ChangesFor lists the recorded operations on one entity, oldest first.
func (r *JournalRepo) ChangesFor(ctx context.Context, entityID string) ([]domain.Change, error) {
	const q = `
        SELECT c.entity_id, c.op
        FROM commit_journal_changes c
        JOIN commit_journal j ON j.tx_id = c.tx_id
        WHERE c.entity_id = $1
        ORDER BY j.committed_at, c.seq`
	rows, err := r.db.Pool.Query(ctx, q, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Change
	for rows.Next() {
		var c domain.Change
		var op string
		if err := rows.Scan(&c.EntityID, &op); err != nil {
			return nil, err
		}
		c.Op = domain.ChangeOp(op)
		out = append(out, c)
	}
	return out, rows.Err()
}
