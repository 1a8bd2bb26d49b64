package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
	"wager-leaderboard/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	query  map[string][]string
	header http.Header
	body   []byte
}

// upstream replays scripted responses in order; the last one repeats.
type upstream struct {
	mu       sync.Mutex
	script   []http.HandlerFunc
	requests []recordedRequest
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	u.mu.Lock()
	u.requests = append(u.requests, recordedRequest{
		method: r.Method,
		query:  r.URL.Query(),
		header: r.Header.Clone(),
		body:   body,
	})
	i := len(u.requests) - 1
	if i >= len(u.script) {
		i = len(u.script) - 1
	}
	h := u.script[i]
	u.mu.Unlock()

	h(w, r)
}

func (u *upstream) calls() []recordedRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]recordedRequest(nil), u.requests...)
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func instant(f *fetcher) *sleepRecorder {
	rec := &sleepRecorder{}
	f.sleep = rec.sleep
	f.jitter = func(lo, hi time.Duration) time.Duration { return lo }
	f.policy.AttemptTimeout = 2 * time.Second
	return rec
}

func newTestUpgrader(t *testing.T, script ...http.HandlerFunc) (*UpgraderClient, *upstream, *sleepRecorder) {
	t.Helper()
	up := &upstream{script: script}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	c := NewUpgraderClient(&config.Config{
		UpgraderAPIKey:  "c8d7147e-test-key",
		UpgraderBaseURL: srv.URL + "/",
	}, zerolog.Nop())
	return c, up, instant(c.fetcher)
}

func newTestRainbet(t *testing.T, script ...http.HandlerFunc) (*RainbetClient, *upstream, *sleepRecorder) {
	t.Helper()
	up := &upstream{script: script}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	c := NewRainbetClient(&config.Config{
		RainbetAPIKey:  "rainbet-test-key",
		RainbetBaseURL: srv.URL,
	}, zerolog.Nop())
	return c, up, instant(c.fetcher)
}

var (
	periodFrom = time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC)
	periodTo   = periodFrom.Add(14*24*time.Hour - time.Millisecond)
)

const upgraderOK = `{"data":{"summarizedBets":[{"user":{"username":"coolguy17"},"wager":12345},{"user":{"username":"abc"},"wager":100}]}}`

func TestUpgraderSuccess(t *testing.T) {
	c, up, sleeps := newTestUpgrader(t, respond(200, upgraderOK))

	bets, err := c.FetchSummarizedBets(context.Background(), periodFrom, periodTo)
	require.NoError(t, err)
	require.Len(t, bets, 2)
	assert.Equal(t, "coolguy17", bets[0].User.Username)
	assert.Equal(t, int64(12345), bets[0].Wager)

	calls := up.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPost, calls[0].method)
	assert.Equal(t, "Mozilla/5.0 (compatible; LeaderboardAPI/1.0)", calls[0].header.Get("User-Agent"))
	assert.Equal(t, "application/json", calls[0].header.Get("Content-Type"))

	var payload map[string]string
	require.NoError(t, json.Unmarshal(calls[0].body, &payload))
	assert.Equal(t, map[string]string{
		"apikey": "c8d7147e-test-key",
		"from":   "2026-10-16",
		"to":     "2026-10-29",
	}, payload)

	assert.Empty(t, sleeps.recorded())
}

func TestUpgraderThreeTransientFailures(t *testing.T) {
	c, up, sleeps := newTestUpgrader(t, respond(500, `{"msg":"internal error"}`))

	bets, err := c.FetchSummarizedBets(context.Background(), periodFrom, periodTo)
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Nil(t, bets)

	assert.Len(t, up.calls(), 3)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleeps.recorded())
}

func TestUpgraderRateLimitWaitsThenRetries(t *testing.T) {
	c, up, sleeps := newTestUpgrader(t,
		respond(500, `{"error":true,"msg":"Rate limit exceeded, try again later"}`),
		respond(200, upgraderOK),
	)

	bets, err := c.FetchSummarizedBets(context.Background(), periodFrom, periodTo)
	require.NoError(t, err)
	assert.Len(t, bets, 2)

	assert.Len(t, up.calls(), 2)
	assert.Equal(t, []time.Duration{30 * time.Second}, sleeps.recorded())
}

func TestUpgraderAntiBlockSecondStrategySucceeds(t *testing.T) {
	c, up, sleeps := newTestUpgrader(t,
		respond(403, `forbidden`),
		respond(403, `forbidden`),
		respond(403, `forbidden`),
		respond(429, `slow down`),
		respond(200, upgraderOK),
	)

	bets, err := c.FetchSummarizedBets(context.Background(), periodFrom, periodTo)
	require.NoError(t, err)
	assert.Len(t, bets, 2)

	calls := up.calls()
	require.Len(t, calls, 5)
	assert.Contains(t, calls[3].header.Get("User-Agent"), "Chrome")
	assert.Equal(t, "en-US,en;q=0.9", calls[3].header.Get("Accept-Language"))
	assert.Contains(t, calls[4].header.Get("User-Agent"), "Firefox")
	assert.Equal(t, "XMLHttpRequest", calls[4].header.Get("X-Requested-With"))

	// two ordinary retry delays, then each rung's minimum jitter
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 1 * time.Second, 2 * time.Second}, sleeps.recorded())
}

func TestUpgraderMarkupIsBlocking(t *testing.T) {
	c, up, _ := newTestUpgrader(t,
		respond(200, `<!DOCTYPE html><html><body>Just a moment...</body></html>`),
		respond(200, `<html></html>`),
		respond(200, `<html></html>`),
		respond(200, upgraderOK),
	)

	bets, err := c.FetchSummarizedBets(context.Background(), periodFrom, periodTo)
	require.NoError(t, err)
	assert.Len(t, bets, 2)

	calls := up.calls()
	require.Len(t, calls, 4)
	assert.Contains(t, calls[3].header.Get("User-Agent"), "Chrome")
}

func TestUpgraderLadderExhausted(t *testing.T) {
	c, up, _ := newTestUpgrader(t, respond(503, `unavailable`))

	_, err := c.FetchSummarizedBets(context.Background(), periodFrom, periodTo)
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, ErrBlocked)

	calls := up.calls()
	require.Len(t, calls, 6)
	assert.Equal(t, "curl/8.5.0", calls[5].header.Get("User-Agent"))
}

func TestUpgraderApplicationError(t *testing.T) {
	c, up, _ := newTestUpgrader(t, respond(200, `{"error":true,"message":"invalid api key"}`))

	_, err := c.FetchSummarizedBets(context.Background(), periodFrom, periodTo)
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, ErrUpstreamApplication)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Len(t, up.calls(), 3)
}

func TestUpgraderMissingData(t *testing.T) {
	c, _, _ := newTestUpgrader(t, respond(200, `{"status":"ok"}`))

	_, err := c.FetchSummarizedBets(context.Background(), periodFrom, periodTo)
	require.ErrorIs(t, err, ErrMissingDataShape)
}

func TestUpgraderEmptySummarizedBets(t *testing.T) {
	c, _, _ := newTestUpgrader(t, respond(200, `{"data":{}}`))

	bets, err := c.FetchSummarizedBets(context.Background(), periodFrom, periodTo)
	require.NoError(t, err)
	assert.NotNil(t, bets)
	assert.Empty(t, bets)
}

func TestUpgraderNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewUpgraderClient(&config.Config{UpgraderAPIKey: "k", UpgraderBaseURL: url}, zerolog.Nop())
	sleeps := instant(c.fetcher)

	_, err := c.FetchSummarizedBets(context.Background(), periodFrom, periodTo)
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Len(t, sleeps.recorded(), 2)
}

func TestFetchStopsWhenContextDone(t *testing.T) {
	c, up, _ := newTestUpgrader(t, respond(500, `{"msg":"internal"}`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchSummarizedBets(ctx, periodFrom, periodTo)
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, up.calls())
}

func TestRainbetRequestAndDecode(t *testing.T) {
	c, up, _ := newTestRainbet(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "59")
		w.Header().Set("X-RateLimit-Reset", "30")
		_, _ = io.WriteString(w, `{"affiliates":[{"username":"xx","wagered_amount":"10.4"},{"username":"yy","wagered_amount":"20.9"}]}`)
	})

	from := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.October, 31, 0, 0, 0, 0, time.UTC)
	affiliates, err := c.FetchAffiliates(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, affiliates, 2)
	assert.Equal(t, "20.9", affiliates[1].WageredAmount)

	calls := up.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodGet, calls[0].method)
	assert.Equal(t, []string{"2026-10-01"}, calls[0].query["start_at"])
	assert.Equal(t, []string{"2026-10-31"}, calls[0].query["end_at"])
	assert.Equal(t, []string{"rainbet-test-key"}, calls[0].query["key"])

	limits := c.RateLimit()
	assert.Equal(t, 60, limits.Limit)
	assert.Equal(t, 59, limits.Remaining)
	assert.Equal(t, 30, limits.Reset)
	assert.False(t, limits.UpdatedAt.IsZero())
}

func TestRainbetMissingAffiliates(t *testing.T) {
	c, up, _ := newTestRainbet(t, respond(200, `{"message":"no data"}`))

	_, err := c.FetchAffiliates(context.Background(), periodFrom, periodTo)
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, ErrMissingDataShape)
	assert.Len(t, up.calls(), 3)
}

func TestRedactKey(t *testing.T) {
	assert.Equal(t, "c8d7147e...", redactKey("c8d7147e-a896-4992"))
	assert.Equal(t, "...", redactKey("short"))
}
