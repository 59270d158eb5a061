package application

import (
	"context"

	"users-service/internal/domain"
)

// UnitOfWork mediates access to the user store. Outside Do, reads and writes
// hit committed state directly; inside Do they are staged and become visible
// together when fn returns nil.
type UnitOfWork interface {
	// Do runs fn in a transaction. An error from fn discards every staged
	// write and is returned unchanged.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
	IsActive() bool

	Get(id string) (domain.User, bool)
	List() []domain.User
	Save(u domain.User) error
	// Update upserts like Save. Existence checks belong to the caller.
	Update(u domain.User) error
	Delete(id string) error
}

// UnitOfWorkFactory returns a fresh UnitOfWork; one per request.
type UnitOfWorkFactory func() UnitOfWork
