package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"users-service/internal/application"
	"users-service/internal/config"
	"users-service/internal/domain"
	httpserver "users-service/internal/infrastructure/http"
	"users-service/internal/infrastructure/logx"
	"users-service/internal/infrastructure/memstore"
	"users-service/internal/infrastructure/metrics"
	"users-service/internal/infrastructure/pg"
	redisstore "users-service/internal/infrastructure/redis"
	"users-service/internal/infrastructure/seed"
	"users-service/internal/infrastructure/sqlite"
	"users-service/internal/infrastructure/worker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// JournalSink is the configured commit journal plus its readiness probe.
// Ping is nil when the backend has nothing to probe.
type JournalSink struct {
	application.CommitJournal
	Ping func(ctx context.Context) error
}

// Seeded records how many users the seed file put in the store.
type Seeded struct{ Users int }

type App struct {
	Config  config.Config
	Handler http.Handler
	Journal *worker.JournalWriter
	Seeded  Seeded
}

func ProvideLogger() *zap.Logger { return logx.L() }

func ProvideConfig() config.Config { return config.Load() }

func ProvideMetrics() *metrics.Metrics { return metrics.New() }

func ProvideStore(cfg config.Config) *memstore.Store[domain.User] {
	return memstore.NewStore[domain.User](memstore.WithSerializedTransactions(cfg.SerializeTx))
}

func ProvideJournalSink(ctx context.Context, log *zap.Logger, cfg config.Config) (JournalSink, func(), error) {
	switch cfg.JournalBackend {
	case "", "none":
		return JournalSink{CommitJournal: application.NoopJournal{}}, func() {}, nil
	case "pg":
		if cfg.DatabaseURL == "" {
			return JournalSink{}, func() {}, ErrMissingDBURL
		}
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return JournalSink{}, func() {}, err
		}
		if err := pg.RunMigrations(ctx, db); err != nil {
			db.Close()
			return JournalSink{}, func() {}, err
		}
		repo := pg.NewJournalRepo(db)
		cleanup := func() {
			log.Info("closing pg")
			db.Close()
		}
		return JournalSink{CommitJournal: repo, Ping: repo.Ping}, cleanup, nil
	case "sqlite":
		j, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return JournalSink{}, func() {}, err
		}
		cleanup := func() {
			log.Info("closing sqlite", zap.String("path", cfg.SQLitePath))
			_ = j.Close()
		}
		return JournalSink{CommitJournal: j, Ping: j.Ping}, cleanup, nil
	default:
		return JournalSink{}, func() {}, fmt.Errorf("JOURNAL_BACKEND=%q: %w", cfg.JournalBackend, ErrUnknownBackend)
	}
}

func ProvideJournalWriter(sink JournalSink, cfg config.Config, m *metrics.Metrics) *worker.JournalWriter {
	return worker.NewJournalWriter(sink.CommitJournal, cfg.JournalBuffer, m)
}

func ProvideUoWFactory(store *memstore.Store[domain.User], jw *worker.JournalWriter, m *metrics.Metrics, log *zap.Logger) application.UnitOfWorkFactory {
	return func() application.UnitOfWork {
		return memstore.NewUnitOfWork(store,
			memstore.WithLogger(log),
			memstore.WithJournal(jw),
			memstore.WithMetrics(m),
		)
	}
}

func ProvideIdempotency(ctx context.Context, log *zap.Logger, cfg config.Config) (application.IdempotencyStore, func(), error) {
	switch cfg.IdempotencyBackend {
	case "", "none":
		return application.NoopIdempotency{}, func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := redisstore.New(client, cfg.RedisTTL)
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := store.Ping(pctx); err != nil {
			// Requests with a key fail until redis is reachable; the rest keep working.
			log.Warn("redis.unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		return store, func() { _ = client.Close() }, nil
	default:
		return nil, func() {}, fmt.Errorf("IDEMPOTENCY_BACKEND=%q: %w", cfg.IdempotencyBackend, ErrUnknownBackend)
	}
}

func ProvideUserService(newUoW application.UnitOfWorkFactory, idem application.IdempotencyStore) *application.UserService {
	return application.NewUserService(newUoW, idem)
}

func ProvideServer(svc *application.UserService, m *metrics.Metrics, sink JournalSink) *httpserver.Server {
	srv := httpserver.NewServer(svc, m)
	if sink.Ping != nil {
		srv.SetReadyCheck(sink.Ping)
	}
	return srv
}

// ProvideSeed applies SEED_FILE, if set, in a single transaction.
func ProvideSeed(ctx context.Context, log *zap.Logger, cfg config.Config, newUoW application.UnitOfWorkFactory) (Seeded, error) {
	if cfg.SeedFile == "" {
		return Seeded{}, nil
	}
	users, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return Seeded{}, err
	}
	if err := seed.Apply(ctx, newUoW(), users, time.Now().UTC()); err != nil {
		return Seeded{}, fmt.Errorf("apply seed %s: %w", cfg.SeedFile, err)
	}
	log.Info("seed.loaded", zap.String("file", cfg.SeedFile), zap.Int("users", len(users)))
	return Seeded{Users: len(users)}, nil
}

func ProvideApp(cfg config.Config, srv *httpserver.Server, jw *worker.JournalWriter, seeded Seeded) *App {
	return &App{
		Config:  cfg,
		Handler: httpserver.NewRouter(srv),
		Journal: jw,
		Seeded:  seeded,
	}
}
