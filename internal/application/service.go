package application

import (
	"context"
	"fmt"
	"strings"

	"users-service/internal/domain"
	"users-service/internal/infrastructure/logx"

	"go.uber.org/zap"
)

const idemKeyPrefix = "users:create:"

type UserService struct {
	newUoW UnitOfWorkFactory
	idem   IdempotencyStore
	clock  Clock
	idgen  IDGen
}

type Option func(*UserService)

func WithClock(c Clock) Option { return func(s *UserService) { s.clock = c } }
func WithIDGen(g IDGen) Option { return func(s *UserService) { s.idgen = g } }

func NewUserService(newUoW UnitOfWorkFactory, idem IdempotencyStore, opts ...Option) *UserService {
	s := &UserService{
		newUoW: newUoW,
		idem:   idem,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.idem == nil {
		s.idem = NoopIdempotency{}
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.idgen == nil {
		s.idgen = defaultIDGen{}
	}
	return s
}

// CreateUser stores in as a new user. A repeated idem key yields ErrConflict.
func (s *UserService) CreateUser(ctx context.Context, in domain.User, idem *string) (_ domain.User, retErr error) {
	u, err := s.prepareCreate(in)
	if err != nil {
		return domain.User{}, err
	}
	if idem != nil && *idem != "" {
		key := idemKeyPrefix + *idem
		ok, err := s.idem.TryReserve(ctx, key)
		if err != nil {
			return domain.User{}, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if !ok {
			return domain.User{}, ErrConflict
		}
		defer func() {
			if retErr == nil {
				return
			}
			// The client may be gone; the key must still be freed for its retry.
			if err := s.idem.Release(context.WithoutCancel(ctx), key); err != nil {
				logx.FromContext(ctx).Warn("idempotency.release_failed", zap.String("key", key), zap.Error(err))
			}
		}()
	}

	uow := s.newUoW()
	if err := uow.Do(ctx, func(context.Context) error {
		return uow.Save(u)
	}); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// CreateUserThenFail stages the same write as CreateUser and then aborts the
// transaction with ErrInducedFailure.
func (s *UserService) CreateUserThenFail(ctx context.Context, in domain.User) error {
	u, err := s.prepareCreate(in)
	if err != nil {
		return err
	}
	uow := s.newUoW()
	return uow.Do(ctx, func(context.Context) error {
		if err := uow.Save(u); err != nil {
			return err
		}
		return ErrInducedFailure
	})
}

func (s *UserService) GetUser(_ context.Context, id string) (domain.User, error) {
	u, ok := s.newUoW().Get(id)
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

func (s *UserService) ListUsers(_ context.Context) []domain.User {
	return s.newUoW().List()
}

// UpdateUser replaces the name (and email, when given) of an existing user.
func (s *UserService) UpdateUser(ctx context.Context, in domain.User) (domain.User, error) {
	return s.update(ctx, in, nil)
}

// UpdateUserThenFail stages the same write as UpdateUser and then aborts the
// transaction with ErrInducedFailure.
func (s *UserService) UpdateUserThenFail(ctx context.Context, in domain.User) error {
	_, err := s.update(ctx, in, ErrInducedFailure)
	return err
}

// DeleteUser removes id. Deleting an unknown id succeeds.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	uow := s.newUoW()
	return uow.Do(ctx, func(context.Context) error {
		return uow.Delete(id)
	})
}

func (s *UserService) prepareCreate(in domain.User) (domain.User, error) {
	u, err := domain.NormalizeUser(in)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if u.ID == "" {
		u.ID = s.idgen.NewID()
	}
	u.CreatedAt = s.clock.Now()
	u.UpdatedAt = nil
	return u, nil
}

func (s *UserService) update(ctx context.Context, in domain.User, failWith error) (domain.User, error) {
	u, err := domain.NormalizeUser(in)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if strings.TrimSpace(u.ID) == "" {
		return domain.User{}, fmt.Errorf("%w: id is required", ErrBadRequest)
	}

	uow := s.newUoW()
	err = uow.Do(ctx, func(context.Context) error {
		existing, ok := uow.Get(u.ID)
		if !ok {
			return ErrNotFound
		}
		now := s.clock.Now()
		u.CreatedAt = existing.CreatedAt
		u.UpdatedAt = &now
		if u.Email == "" {
			u.Email = existing.Email
		}
		if err := uow.Update(u); err != nil {
			return err
		}
		return failWith
	})
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}
