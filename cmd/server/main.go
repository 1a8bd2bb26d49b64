package main

import (
	"context"
	"fmt"
	"net/http"
	"wager-leaderboard/internal/config"
	"wager-leaderboard/internal/constants"
	fxmodules "wager-leaderboard/internal/fx"
	"wager-leaderboard/internal/middleware"
	"wager-leaderboard/internal/server"
	"wager-leaderboard/internal/service"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runScheduler),
		fx.Invoke(runServer),
	).Run()
}

func runScheduler(lc fx.Lifecycle, scheduler *service.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			scheduler.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			return scheduler.Stop(stopCtx)
		},
	})
}

func runServer(
	lc fx.Lifecycle,
	leaderboardServer *server.LeaderboardServer,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	mux := http.NewServeMux()
	leaderboardServer.Register(mux)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: middleware.RequestID(logger)(c.Handler(mux)),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
