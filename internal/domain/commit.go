package domain

import "time"

type ChangeOp string

const (
	ChangeOpUpsert ChangeOp = "upsert"
	ChangeOpDelete ChangeOp = "delete"
)

// Change is one staged mutation, in the order it was applied.
type Change struct {
	EntityID string
	Op       ChangeOp
}

// CommitRecord describes a transaction that reached the store.
type CommitRecord struct {
	TxID        string
	Changes     []Change
	Entities    int
	StartedAt   time.Time
	CommittedAt time.Time
}
