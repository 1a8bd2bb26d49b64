package fx

import (
	"wager-leaderboard/internal/api"
	"wager-leaderboard/internal/cache"
	"wager-leaderboard/internal/config"
	"wager-leaderboard/internal/logger"
	"wager-leaderboard/internal/server"
	"wager-leaderboard/internal/service"

	"go.uber.org/fx"
)

func ProvideUpgraderSource(c *api.UpgraderClient) service.UpgraderSource {
	return c
}

func ProvideRainbetSource(c *api.RainbetClient) service.RainbetSource {
	return c
}

var Module = fx.Options(
	fx.Provide(config.Load),
	fx.Provide(logger.New),
	fx.Invoke(config.LogSummary),
	// upstream clients
	fx.Provide(api.NewUpgraderClient),
	fx.Provide(api.NewRainbetClient),
	fx.Provide(ProvideUpgraderSource),
	fx.Provide(ProvideRainbetSource),
	// cache + svc
	fx.Provide(cache.New),
	fx.Provide(service.NewScheduler),
	fx.Provide(service.NewLeaderboardService),
	// server
	fx.Provide(server.NewLeaderboardServer),
)
