package service

import (
	"context"
	"fmt"
	"time"
	"wager-leaderboard/internal/api"
	"wager-leaderboard/internal/cache"
	"wager-leaderboard/internal/constants"
	"wager-leaderboard/internal/domain"
	"wager-leaderboard/internal/leaderboard"
	"wager-leaderboard/internal/period"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type LeaderboardService struct {
	cache     *cache.Cache
	upgrader  UpgraderSource
	rainbet   RainbetSource
	scheduler *Scheduler
	logger    zerolog.Logger

	group singleflight.Group
	now   func() time.Time
}

func NewLeaderboardService(c *cache.Cache, upgrader UpgraderSource, rainbet RainbetSource, scheduler *Scheduler, logger zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		cache:     c,
		upgrader:  upgrader,
		rainbet:   rainbet,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *LeaderboardService) UpgraderCurrent() []domain.LeaderboardRow {
	return s.cache.Get(cache.SliceUpgraderCurrent)
}

func (s *LeaderboardService) UpgraderPrevious() []domain.LeaderboardRow {
	return s.cache.Get(cache.SliceUpgraderPrevious)
}

func (s *LeaderboardService) Rainbet() []domain.LeaderboardRow {
	return s.cache.Get(cache.SliceRainbet)
}

// RainbetPreviousMonth fetches last month's Rainbet leaderboard directly from
// upstream. There is no cached slice to fall back on, so failures are returned.
// Concurrent callers for the same month share one upstream fetch.
func (s *LeaderboardService) RainbetPreviousMonth(ctx context.Context) ([]domain.LeaderboardRow, error) {
	month := period.Monthly(s.now()).Previous
	key := period.FormatDate(month.From)

	ch := s.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.OnDemandTimeout)
		defer cancel()

		affiliates, err := s.rainbet.FetchAffiliates(fetchCtx, month.From, month.To)
		if err != nil {
			return nil, err
		}
		return leaderboard.FormatRainbet(affiliates), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			s.logger.Error().Err(res.Err).Str("month", key).Msg("failed to fetch previous leaderboard")
			return nil, fmt.Errorf("failed to fetch previous rainbet leaderboard: %w", res.Err)
		}
		rows := res.Val.([]domain.LeaderboardRow)
		out := make([]domain.LeaderboardRow, len(rows))
		copy(out, rows)
		return out, nil
	}
}

type SourceStatus struct {
	LastRun   *domain.RefreshResult `json:"last_run,omitempty"`
	RateLimit *api.RateLimitInfo    `json:"rate_limit,omitempty"`
}

type Status struct {
	Cache   []cache.SliceInfo              `json:"cache"`
	Sources map[domain.Source]SourceStatus `json:"sources"`
}

func (s *LeaderboardService) Status() Status {
	runs := s.scheduler.LastRuns()

	sources := map[domain.Source]SourceStatus{
		domain.SourceUpgrader: {RateLimit: rateLimitOf(s.upgrader)},
		domain.SourceRainbet:  {RateLimit: rateLimitOf(s.rainbet)},
	}
	for src, st := range sources {
		if run, ok := runs[src]; ok {
			st.LastRun = &run
			sources[src] = st
		}
	}

	return Status{Cache: s.cache.Snapshot(), Sources: sources}
}

func rateLimitOf(src any) *api.RateLimitInfo {
	r, ok := src.(interface{ RateLimit() api.RateLimitInfo })
	if !ok {
		return nil
	}
	info := r.RateLimit()
	if info.UpdatedAt.IsZero() {
		return nil
	}
	return &info
}
