package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
	"wager-leaderboard/internal/api"
	"wager-leaderboard/internal/cache"
	"wager-leaderboard/internal/config"
	"wager-leaderboard/internal/constants"
	"wager-leaderboard/internal/domain"
	"wager-leaderboard/internal/leaderboard"
	"wager-leaderboard/internal/period"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type UpgraderSource interface {
	FetchSummarizedBets(ctx context.Context, from, to time.Time) ([]api.SummarizedBet, error)
}

type RainbetSource interface {
	FetchAffiliates(ctx context.Context, from, to time.Time) ([]api.Affiliate, error)
}

// Scheduler owns one refresh loop per upstream and the cache they write to.
// A source never has more than one refresh in flight.
type Scheduler struct {
	upgrader UpgraderSource
	rainbet  RainbetSource
	cache    *cache.Cache
	logger   zerolog.Logger

	interval        time.Duration
	rainbetDelay    time.Duration
	interFetchDelay time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	upgraderRunning atomic.Bool
	rainbetRunning  atomic.Bool

	lastMu sync.RWMutex
	last   map[domain.Source]domain.RefreshResult

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(cfg *config.Config, upgrader UpgraderSource, rainbet RainbetSource, c *cache.Cache, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		upgrader:        upgrader,
		rainbet:         rainbet,
		cache:           c,
		logger:          logger.With().Str("component", "scheduler").Logger(),
		interval:        cfg.RefreshInterval,
		rainbetDelay:    constants.RainbetStartupDelay,
		interFetchDelay: constants.InterFetchDelay,
		now:             time.Now,
		sleep:           sleep,
		last:            make(map[domain.Source]domain.RefreshResult),
	}
}

// Start launches both refresh loops. Upgrader refreshes immediately, Rainbet
// after its startup delay; both then repeat on the configured interval.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	g := new(errgroup.Group)
	g.Go(func() error {
		s.loop(ctx, domain.SourceUpgrader, 0, s.RefreshUpgrader)
		return nil
	})
	g.Go(func() error {
		s.loop(ctx, domain.SourceRainbet, s.rainbetDelay, s.RefreshRainbet)
		return nil
	})

	go func() {
		_ = g.Wait()
		close(s.done)
	}()

	s.logger.Info().Dur("interval", s.interval).Msg("refresh scheduler started")
}

// Stop halts the tickers. A refresh already running is not aborted; Stop
// waits for it until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	select {
	case <-s.done:
		s.logger.Info().Msg("refresh scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("refresh still in flight at shutdown")
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context, source domain.Source, initialDelay time.Duration, job func(context.Context) domain.RefreshResult) {
	if err := s.sleep(ctx, initialDelay); err != nil {
		return
	}

	// jobs are not cancelable; shutdown only stops further ticks
	jobCtx := context.WithoutCancel(ctx)
	job(jobCtx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Str("source", string(source)).Msg("refresh loop exiting")
			return
		case <-ticker.C:
			job(jobCtx)
		}
	}
}

// RefreshUpgrader fetches the current and previous biweekly windows in turn.
// Each window's slice is replaced only when its fetch succeeds.
func (s *Scheduler) RefreshUpgrader(ctx context.Context) domain.RefreshResult {
	return s.guard(ctx, domain.SourceUpgrader, &s.upgraderRunning, func(ctx context.Context, logger zerolog.Logger, result *domain.RefreshResult) {
		periods := period.Biweekly(s.now())

		s.refreshSlice(ctx, logger, result, cache.SliceUpgraderCurrent, func(ctx context.Context) ([]domain.LeaderboardRow, error) {
			bets, err := s.upgrader.FetchSummarizedBets(ctx, periods.Current.From, periods.Current.To)
			if err != nil {
				return nil, err
			}
			return leaderboard.FormatUpgrader(bets), nil
		})

		// spread the two calls to ease upstream rate limiting
		_ = s.sleep(ctx, s.interFetchDelay)

		s.refreshSlice(ctx, logger, result, cache.SliceUpgraderPrevious, func(ctx context.Context) ([]domain.LeaderboardRow, error) {
			bets, err := s.upgrader.FetchSummarizedBets(ctx, periods.Previous.From, periods.Previous.To)
			if err != nil {
				return nil, err
			}
			return leaderboard.FormatUpgrader(bets), nil
		})
	})
}

// RefreshRainbet fetches the current calendar month.
func (s *Scheduler) RefreshRainbet(ctx context.Context) domain.RefreshResult {
	return s.guard(ctx, domain.SourceRainbet, &s.rainbetRunning, func(ctx context.Context, logger zerolog.Logger, result *domain.RefreshResult) {
		month := period.Monthly(s.now()).Current

		s.refreshSlice(ctx, logger, result, cache.SliceRainbet, func(ctx context.Context) ([]domain.LeaderboardRow, error) {
			affiliates, err := s.rainbet.FetchAffiliates(ctx, month.From, month.To)
			if err != nil {
				return nil, err
			}
			return leaderboard.FormatRainbet(affiliates), nil
		})
	})
}

func (s *Scheduler) guard(ctx context.Context, source domain.Source, running *atomic.Bool, run func(context.Context, zerolog.Logger, *domain.RefreshResult)) (result domain.RefreshResult) {
	result = domain.RefreshResult{Source: source, StartedAt: s.now()}

	if !running.CompareAndSwap(false, true) {
		s.logger.Warn().Str("source", string(source)).Msg("refresh already in flight, skipping")
		result.Skipped = true
		result.FinishedAt = s.now()
		return result
	}
	defer running.Store(false)

	runID, err := gonanoid.New()
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to generate run id")
	}
	result.RunID = runID
	logger := s.logger.With().Str("source", string(source)).Str("run_id", runID).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("refresh panicked")
		}
		result.FinishedAt = s.now()
		s.record(result)
	}()

	logger.Info().Msg("refresh started")
	run(ctx, logger, &result)

	logger.Info().
		Strs("updated", result.Updated).
		Strs("failed", result.Failed).
		Dur("took", s.now().Sub(result.StartedAt)).
		Msg("refresh finished")
	return result
}

func (s *Scheduler) refreshSlice(ctx context.Context, logger zerolog.Logger, result *domain.RefreshResult, slice cache.Slice, load func(context.Context) ([]domain.LeaderboardRow, error)) {
	rows, err := load(ctx)
	if err != nil {
		logger.Error().Err(err).Str("slice", string(slice)).Msg("refresh failed, keeping cached rows")
		result.Failed = append(result.Failed, string(slice))
		return
	}

	s.cache.Replace(slice, rows)
	result.Updated = append(result.Updated, string(slice))
	logger.Info().Str("slice", string(slice)).Int("rows", len(rows)).Msg("leaderboard updated")
}

func (s *Scheduler) record(result domain.RefreshResult) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	s.last[result.Source] = result
}

// LastRuns returns the most recent completed refresh per source.
func (s *Scheduler) LastRuns() map[domain.Source]domain.RefreshResult {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()

	out := make(map[domain.Source]domain.RefreshResult, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
