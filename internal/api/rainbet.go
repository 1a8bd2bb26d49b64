package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
	"wager-leaderboard/internal/config"
	"wager-leaderboard/internal/period"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const rainbetAffiliatesEndpoint = "/v1/external/affiliates"

type RainbetClient struct {
	*fetcher
	apiKey  string
	baseURL string
}

func NewRainbetClient(cfg *config.Config, logger zerolog.Logger) *RainbetClient {
	return &RainbetClient{
		fetcher: newFetcher("rainbet", logger),
		apiKey:  cfg.RainbetAPIKey,
		baseURL: strings.TrimRight(cfg.RainbetBaseURL, "/"),
	}
}

type RainbetAffiliatesResponse struct {
	Affiliates []Affiliate `json:"affiliates"`
}

type Affiliate struct {
	Username string `json:"username"`

	// decimal string, e.g. "1520.75"
	WageredAmount string `json:"wagered_amount"`
}

// FetchAffiliates returns the affiliate rows wagered within [from, to].
func (c *RainbetClient) FetchAffiliates(ctx context.Context, from, to time.Time) ([]Affiliate, error) {
	q := url.Values{}
	q.Set("start_at", period.FormatDate(from))
	q.Set("end_at", period.FormatDate(to))

	base := c.baseURL + rainbetAffiliatesEndpoint + "?" + q.Encode()
	q.Set("key", c.apiKey)
	full := c.baseURL + rainbetAffiliatesEndpoint + "?" + q.Encode()

	c.logger.Info().Str("url", base).Msg("requesting rainbet affiliates")

	return fetch(ctx, c.fetcher, request{
		method: fasthttp.MethodGet,
		url:    full,
		logURL: base,
	}, decodeRainbetAffiliates)
}

func decodeRainbetAffiliates(body []byte) ([]Affiliate, error) {
	var resp RainbetAffiliatesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	if resp.Affiliates == nil {
		return nil, fmt.Errorf("%w: affiliates", ErrMissingDataShape)
	}
	return resp.Affiliates, nil
}
