package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"wager-leaderboard/internal/config"
	"wager-leaderboard/internal/period"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const upgraderStatsEndpoint = "/affiliate/creator/get-stats"

type UpgraderClient struct {
	*fetcher
	apiKey  string
	baseURL string
}

func NewUpgraderClient(cfg *config.Config, logger zerolog.Logger) *UpgraderClient {
	return &UpgraderClient{
		fetcher: newFetcher("upgrader", logger),
		apiKey:  cfg.UpgraderAPIKey,
		baseURL: strings.TrimRight(cfg.UpgraderBaseURL, "/"),
	}
}

type upgraderStatsRequest struct {
	APIKey string `json:"apikey"`
	From   string `json:"from"`
	To     string `json:"to"`
}

type UpgraderStatsResponse struct {
	Error   bool               `json:"error"`
	Message string             `json:"message"`
	Msg     string             `json:"msg"`
	Data    *UpgraderStatsData `json:"data"`
}

type UpgraderStatsData struct {
	SummarizedBets []SummarizedBet `json:"summarizedBets"`
}

type SummarizedBet struct {
	User struct {
		Username string `json:"username"`
	} `json:"user"`

	// minor units (cents)
	Wager int64 `json:"wager"`
}

// FetchSummarizedBets returns the affiliate's summarized bets for the
// inclusive date range [from, to].
func (c *UpgraderClient) FetchSummarizedBets(ctx context.Context, from, to time.Time) ([]SummarizedBet, error) {
	payload := upgraderStatsRequest{
		APIKey: c.apiKey,
		From:   period.FormatDate(from),
		To:     period.FormatDate(to),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upgrader request: %w", err)
	}

	url := c.baseURL + upgraderStatsEndpoint
	c.logger.Info().
		Str("url", url).
		Str("apikey", redactKey(c.apiKey)).
		Str("from", payload.From).
		Str("to", payload.To).
		Msg("requesting upgrader stats")

	return fetch(ctx, c.fetcher, request{
		method: fasthttp.MethodPost,
		url:    url,
		body:   body,
		logURL: url,
	}, decodeUpgraderStats)
}

func decodeUpgraderStats(body []byte) ([]SummarizedBet, error) {
	var resp UpgraderStatsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}

	if resp.Error {
		msg := resp.Message
		if msg == "" {
			msg = resp.Msg
		}
		if msg == "" {
			msg = "API error"
		}
		return nil, fmt.Errorf("%w: %s", ErrUpstreamApplication, msg)
	}

	if resp.Data == nil {
		return nil, fmt.Errorf("%w: data", ErrMissingDataShape)
	}
	if resp.Data.SummarizedBets == nil {
		return []SummarizedBet{}, nil
	}
	return resp.Data.SummarizedBets, nil
}
