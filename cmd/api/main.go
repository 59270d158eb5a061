package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"users-service/internal/bootstrap"
	"users-service/internal/infrastructure/logx"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() { _ = godotenv.Load() }

func main() {
	logger := logx.L()

	app, cleanup, err := bootstrap.InitAPI(context.Background())
	if err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}
	defer cleanup()

	// The journal writer outlives the HTTP server so commits made while
	// draining connections are still flushed.
	jctx, stopJournal := context.WithCancel(context.Background())
	go app.Journal.Start(jctx)

	addr := ":" + app.Config.Port
	server := &http.Server{
		Addr:    addr,
		Handler: app.Handler,
	}

	go func() {
		logger.Info("server started", zap.String("addr", addr), zap.Int("seeded_users", app.Seeded.Users))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, shCancel := context.WithTimeout(context.Background(), app.Config.ShutdownTimeout)
	defer shCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}

	stopJournal()
	select {
	case <-app.Journal.Done():
	case <-shutdownCtx.Done():
		logger.Warn("journal flush timed out")
	}
	logger.Info("server stopped")
}
