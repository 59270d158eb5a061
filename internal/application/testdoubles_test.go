package application

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"users-service/internal/domain"
)

var (
	ErrRepo = errors.New("repo error")
)

// fakeDB is the committed state shared by every fakeUoW it hands out.
type fakeDB struct {
	users   map[string]domain.User
	commits int
}

func newFakeDB(seed ...domain.User) *fakeDB {
	db := &fakeDB{users: map[string]domain.User{}}
	for _, u := range seed {
		db.users[u.ID] = u
	}
	return db
}

func (db *fakeDB) factory() UnitOfWorkFactory {
	return func() UnitOfWork { return &fakeUoW{db: db} }
}

type fakeUoW struct {
	db      *fakeDB
	staged  map[string]domain.User
	saveErr error
}

func (f *fakeUoW) target() map[string]domain.User {
	if f.staged != nil {
		return f.staged
	}
	return f.db.users
}

func (f *fakeUoW) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	f.staged = maps.Clone(f.db.users)
	defer func() { f.staged = nil }()
	if err := fn(ctx); err != nil {
		return err
	}
	f.db.users = f.staged
	f.db.commits++
	return nil
}

func (f *fakeUoW) IsActive() bool { return f.staged != nil }

func (f *fakeUoW) Get(id string) (domain.User, bool) {
	u, ok := f.target()[id]
	return u, ok
}

func (f *fakeUoW) List() []domain.User {
	m := f.target()
	out := make([]domain.User, 0, len(m))
	for _, id := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[id])
	}
	return out
}

func (f *fakeUoW) Save(u domain.User) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.target()[u.ID] = u
	return nil
}

func (f *fakeUoW) Update(u domain.User) error { return f.Save(u) }

func (f *fakeUoW) Delete(id string) error {
	delete(f.target(), id)
	return nil
}

type fakeIdem struct {
	seen       map[string]bool
	released   []string
	releaseCtx []error // ctx.Err() seen by each Release
	err        error
	releaseErr error
}

func (f *fakeIdem) TryReserve(_ context.Context, k string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[k] {
		return false, nil
	}
	f.seen[k] = true
	return true, nil
}

func (f *fakeIdem) Release(ctx context.Context, k string) error {
	f.released = append(f.released, k)
	f.releaseCtx = append(f.releaseCtx, ctx.Err())
	if f.releaseErr != nil {
		return f.releaseErr
	}
	delete(f.seen, k)
	return nil
}

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

type seqIDGen struct{ n int }

func (g *seqIDGen) NewID() string {
	g.n++
	return "gen-" + string(rune('0'+g.n))
}
