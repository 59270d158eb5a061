package memstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"users-service/internal/application"
	"users-service/internal/domain"
	"users-service/internal/infrastructure/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrTxActive   = errors.New("memstore: transaction already active")
	ErrTxInactive = errors.New("memstore: no active transaction")
)

var errTxAbandoned = errors.New("transaction abandoned")

type Option func(*options)

type options struct {
	log     *zap.Logger
	journal application.CommitJournal
	metrics *metrics.Metrics
	now     func() time.Time
}

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// WithJournal receives a domain.CommitRecord after every commit.
func WithJournal(j application.CommitJournal) Option { return func(o *options) { o.journal = j } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

func WithNow(now func() time.Time) Option { return func(o *options) { o.now = now } }

// UnitOfWork is a single-goroutine session over a Store. Create one per
// logical operation; it is not safe for concurrent use.
type UnitOfWork[E Entity] struct {
	store *Store[E]
	opts  options

	active  bool
	staged  map[string]E
	changes []domain.Change
	txID    string
	started time.Time
}

func NewUnitOfWork[E Entity](store *Store[E], opts ...Option) *UnitOfWork[E] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.journal == nil {
		o.journal = application.NoopJournal{}
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	return &UnitOfWork[E]{store: store, opts: o}
}

func (u *UnitOfWork[E]) IsActive() bool { return u.active }

// Begin snapshots the store. On a serialized store it blocks until no other
// transaction is open.
func (u *UnitOfWork[E]) Begin(_ context.Context) error {
	if u.active {
		u.opts.log.Error("uow.misuse", zap.String("op", "begin"), zap.String("tx_id", u.txID), zap.Error(ErrTxActive))
		return ErrTxActive
	}
	u.store.lockTx()
	u.staged = u.store.Snapshot()
	u.changes = nil
	u.txID = uuid.NewString()
	u.started = u.opts.now()
	u.active = true

	u.opts.metrics.TxBegun()
	u.opts.log.Debug("uow.begin", zap.String("tx_id", u.txID), zap.Int("entities", len(u.staged)))
	return nil
}

// Commit installs the staged map as the committed store.
func (u *UnitOfWork[E]) Commit(ctx context.Context) error {
	if !u.active {
		u.opts.log.Error("uow.misuse", zap.String("op", "commit"), zap.Error(ErrTxInactive))
		return ErrTxInactive
	}
	rec := domain.CommitRecord{
		TxID:      u.txID,
		Changes:   u.changes,
		Entities:  len(u.staged),
		StartedAt: u.started,
	}
	// Stamped before end() releases a serialized store, so journal order
	// follows commit order.
	rec.CommittedAt = u.opts.now()
	u.store.ReplaceAll(u.staged)
	u.end()

	u.opts.metrics.TxCommitted(rec.Entities)
	u.opts.log.Debug("uow.commit",
		zap.String("tx_id", rec.TxID),
		zap.Int("changes", len(rec.Changes)),
		zap.Int("entities", rec.Entities),
	)
	// The store already holds the new state; a journal failure cannot undo it.
	if err := u.opts.journal.Record(ctx, rec); err != nil {
		u.opts.metrics.JournalFailed()
		u.opts.log.Warn("uow.journal_failed", zap.String("tx_id", rec.TxID), zap.Error(err))
	}
	return nil
}

// Rollback discards the staged map. The store is left untouched.
func (u *UnitOfWork[E]) Rollback(_ context.Context) error {
	if !u.active {
		u.opts.log.Error("uow.misuse", zap.String("op", "rollback"), zap.Error(ErrTxInactive))
		return ErrTxInactive
	}
	u.rollback(nil)
	return nil
}

// Do runs fn inside a transaction and commits when it returns nil. On an
// error, a panic or runtime.Goexit the staged writes are discarded first; the
// error is returned as is and the panic is re-raised with the same value.
func (u *UnitOfWork[E]) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := u.Begin(ctx); err != nil {
		return err
	}
	finished := false
	defer func() {
		if finished {
			return
		}
		r := recover()
		if r != nil {
			u.rollback(fmt.Errorf("panic: %v", r))
			panic(r)
		}
		u.rollback(errTxAbandoned)
	}()

	if err := fn(ctx); err != nil {
		finished = true
		u.rollback(err)
		return err
	}
	finished = true
	return u.Commit(ctx)
}

func (u *UnitOfWork[E]) Get(id string) (E, bool) {
	if !u.active {
		return u.store.Get(id)
	}
	e, ok := u.staged[id]
	if !ok {
		var zero E
		return zero, false
	}
	return cloneEntity(e), true
}

// List returns entities ordered by id.
func (u *UnitOfWork[E]) List() []E {
	if !u.active {
		return u.store.List()
	}
	return sortedValues(u.staged)
}

// Save inserts or replaces e by id.
func (u *UnitOfWork[E]) Save(e E) error {
	id := e.EntityID()
	if id == "" {
		return ErrInvalidEntity
	}
	if !u.active {
		u.store.lockTx()
		defer u.store.unlockTx()
		if err := u.store.Put(e); err != nil {
			return err
		}
		u.opts.metrics.SetEntities(u.store.Len())
		return nil
	}
	u.staged[id] = cloneEntity(e)
	u.changes = append(u.changes, domain.Change{EntityID: id, Op: domain.ChangeOpUpsert})
	return nil
}

// Update is Save; whether the entity must already exist is the caller's call.
func (u *UnitOfWork[E]) Update(e E) error { return u.Save(e) }

// Delete removes id. Deleting an absent id does nothing.
func (u *UnitOfWork[E]) Delete(id string) error {
	if !u.active {
		u.store.lockTx()
		defer u.store.unlockTx()
		u.store.Delete(id)
		u.opts.metrics.SetEntities(u.store.Len())
		return nil
	}
	if _, ok := u.staged[id]; !ok {
		return nil
	}
	delete(u.staged, id)
	u.changes = append(u.changes, domain.Change{EntityID: id, Op: domain.ChangeOpDelete})
	return nil
}

func (u *UnitOfWork[E]) rollback(cause error) {
	if !u.active {
		return
	}
	txID, staged := u.txID, len(u.changes)
	u.end()
	u.opts.metrics.TxRolledBack()
	log := u.opts.log.With(zap.String("tx_id", txID), zap.Int("discarded_changes", staged))
	if cause != nil {
		log.Info("uow.rollback", zap.Error(cause))
		return
	}
	log.Debug("uow.rollback")
}

// end returns the session to idle and releases the store for the next transaction.
func (u *UnitOfWork[E]) end() {
	u.active = false
	u.staged = nil
	u.changes = nil
	u.txID = ""
	u.started = time.Time{}
	u.store.unlockTx()
}
