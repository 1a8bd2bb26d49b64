package domain

import (
	"time"
)

// LeaderboardRow is the public shape served to clients. WeightedWager always
// equals Wagered; no weighting is applied upstream or here.
type LeaderboardRow struct {
	Username      string  `json:"username"`
	Wagered       float64 `json:"wagered"`
	WeightedWager float64 `json:"weightedWager"`
}

type Source string

const (
	SourceUpgrader Source = "upgrader"
	SourceRainbet  Source = "rainbet"
)

type RefreshResult struct {
	Source     Source    `json:"source"`
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// slices replaced during the run
	Updated []string `json:"updated"`
	// slices left untouched because their fetch failed
	Failed []string `json:"failed"`

	Skipped bool `json:"skipped,omitempty"` // another run was in flight
}
