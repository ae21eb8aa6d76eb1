package fx

import (
	"ladder-tracker/internal/api"
	"ladder-tracker/internal/completion"
	"ladder-tracker/internal/config"
	"ladder-tracker/internal/constants"
	"ladder-tracker/internal/database"
	"ladder-tracker/internal/history"
	"ladder-tracker/internal/logger"
	"ladder-tracker/internal/repository"
	"ladder-tracker/internal/server"
	"ladder-tracker/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideClassificationTable(cfg *config.Config) (*history.ClassificationTable, error) {
	if cfg.ClassificationTable == "" {
		return history.DefaultClassificationTable(), nil
	}
	return history.LoadClassificationTable(cfg.ClassificationTable)
}

func ProvideSynthesizer(cfg *config.Config) *history.Synthesizer {
	return history.NewSynthesizer(cfg.Location)
}

func ProvideFetcher(cfg *config.Config, log zerolog.Logger) *completion.Fetcher {
	return completion.NewFetcher(cfg.CompletionDebounce, constants.ExternalAPITimeout, logger.Component(log, "completion"))
}

func ProvideNotifier(hub *server.Hub) service.Notifier {
	return hub
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Invoke(func(cfg *config.Config) { logger.SetLevel(cfg.LogLevel) }),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewSeasonRepository),
	fx.Provide(repository.NewTeamStateRepository),
	fx.Provide(repository.NewPatchRepository),
	// api client
	fx.Provide(api.NewPulseClient),
	// engine
	fx.Provide(ProvideClassificationTable),
	fx.Provide(ProvideSynthesizer),
	fx.Provide(ProvideFetcher),
	// svc
	fx.Provide(service.NewViewStore),
	fx.Provide(service.NewSeasonService),
	fx.Provide(service.NewPatchService),
	fx.Provide(service.NewHistoryService),
	fx.Provide(service.NewPointService),
	// server
	fx.Provide(server.NewHub),
	fx.Provide(ProvideNotifier),
	fx.Provide(server.NewLadderServer),
	fx.Provide(server.NewChartHandler),
)
