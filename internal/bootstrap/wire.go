//go:build wireinject

package bootstrap

import (
	"context"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideStore,
	ProvideJournalSink,
	ProvideJournalWriter,
	ProvideUoWFactory,
	ProvideIdempotency,
	ProvideUserService,
)

// API injector: builds *App + Cleanup
func InitAPI(ctx context.Context) (*App, func(), error) {
	wire.Build(
		ProvideConfig,
		infraSet,
		ProvideServer,
		ProvideSeed,
		ProvideApp,
	)
	return nil, nil, nil
}
