package application

import (
	"context"

	"users-service/internal/domain"
)

// CommitJournal receives a record for every transaction that reached the store.
// It is an audit trail; nothing reads it back into the store.
type CommitJournal interface {
	Record(ctx context.Context, rec domain.CommitRecord) error
}

type NoopJournal struct{}

func (NoopJournal) Record(context.Context, domain.CommitRecord) error { return nil }
