package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"users-service/internal/application"
	"users-service/internal/config"
	"users-service/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProvideJournalSink(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()

	sink, cleanup, err := ProvideJournalSink(ctx, log, config.Config{JournalBackend: "none"})
	require.NoError(t, err)
	cleanup()
	require.IsType(t, application.NoopJournal{}, sink.CommitJournal)
	require.Nil(t, sink.Ping)

	sink, cleanup, err = ProvideJournalSink(ctx, log, config.Config{
		JournalBackend: "sqlite",
		SQLitePath:     filepath.Join(t.TempDir(), "journal.db"),
	})
	require.NoError(t, err)
	require.NotNil(t, sink.Ping)
	require.NoError(t, sink.Ping(ctx))
	cleanup()

	_, _, err = ProvideJournalSink(ctx, log, config.Config{JournalBackend: "pg"})
	require.ErrorIs(t, err, ErrMissingDBURL)

	_, _, err = ProvideJournalSink(ctx, log, config.Config{JournalBackend: "kafka"})
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestProvideIdempotency(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()

	idem, cleanup, err := ProvideIdempotency(ctx, log, config.Config{})
	require.NoError(t, err)
	cleanup()
	require.IsType(t, application.NoopIdempotency{}, idem)

	mr := miniredis.RunT(t)
	idem, cleanup, err = ProvideIdempotency(ctx, log, config.Config{
		IdempotencyBackend: "redis",
		RedisAddr:          mr.Addr(),
		RedisTTL:           time.Minute,
	})
	require.NoError(t, err)
	defer cleanup()
	ok, err := idem.TryReserve(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = idem.TryReserve(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = ProvideIdempotency(ctx, log, config.Config{IdempotencyBackend: "memcached"})
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestProvideSeed_InvalidFileAborts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users:\n  - id: u1\n    name: \"\"\n"), 0o600))

	cfg := config.Config{SeedFile: path}
	store := ProvideStore(cfg)
	factory := ProvideUoWFactory(store, ProvideJournalWriter(JournalSink{CommitJournal: application.NoopJournal{}}, cfg, nil), nil, zap.NewNop())

	_, err := ProvideSeed(context.Background(), zap.NewNop(), cfg, factory)
	require.ErrorIs(t, err, domain.ErrInvalidUser)
	require.Equal(t, 0, store.Len())
}

func TestInitAPI_SeedAndJournal(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(`
users:
  - id: u2
    name: Grace
  - id: u1
    name: Ada
    email: ada@example.com
`), 0o600))

	t.Setenv("SEED_FILE", seedPath)
	t.Setenv("JOURNAL_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "journal.db"))
	t.Setenv("IDEMPOTENCY_BACKEND", "none")

	app, cleanup, err := InitAPI(context.Background())
	require.NoError(t, err)
	defer cleanup()
	require.Equal(t, 2, app.Seeded.Users)

	ctx, cancel := context.WithCancel(context.Background())
	go app.Journal.Start(ctx)
	defer func() {
		cancel()
		<-app.Journal.Done()
	}()

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var users []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 2)
	require.Equal(t, "u1", users[0].ID)

	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"id":"u3","name":"Linus"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
}
