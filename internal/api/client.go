package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// fetcher runs the attempt / wait / anti-block state machine against one
// upstream. It is shared by the source-specific clients.
type fetcher struct {
	source string
	client *fasthttp.Client
	policy Policy
	logger zerolog.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(lo, hi time.Duration) time.Duration

	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

type RateLimitInfo struct {
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`

	// seconds until reset
	Reset int `json:"reset"`

	UpdatedAt time.Time `json:"updated_at"`
}

type request struct {
	method string
	url    string
	body   []byte

	// url with secrets removed, for logs
	logURL string
}

func newFetcher(source string, logger zerolog.Logger) *fetcher {
	return &fetcher{
		source: source,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         30 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		policy: DefaultPolicy(),
		logger: logger.With().Str("upstream", source).Logger(),
		sleep:  sleepContext,
		jitter: randomJitter,
	}
}

func (f *fetcher) RateLimit() RateLimitInfo {
	f.rateLimitMu.RLock()
	defer f.rateLimitMu.RUnlock()
	return f.rateLimit
}

func (f *fetcher) updateRateLimit(resp *fasthttp.Response) {
	f.rateLimitMu.Lock()
	defer f.rateLimitMu.Unlock()

	seen := false
	if limit := string(resp.Header.Peek("X-Ratelimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			f.rateLimit.Limit = val
			seen = true
		}
	}
	if remaining := string(resp.Header.Peek("X-Ratelimit-Remaining")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			f.rateLimit.Remaining = val
			seen = true
		}
	}
	if reset := string(resp.Header.Peek("X-Ratelimit-Reset")); reset != "" {
		if val, err := strconv.Atoi(reset); err == nil {
			f.rateLimit.Reset = val
			seen = true
		}
	}
	if seen {
		f.rateLimit.UpdatedAt = time.Now()
	}
}

// fetch drives the state machine until it reaches Done or Failed. It only
// returns an error wrapping ErrFetchFailed.
func fetch[T any](ctx context.Context, f *fetcher, r request, decode func([]byte) (T, error)) (T, error) {
	var zero T
	var lastErr error

	state := Start()
	for {
		switch state.Kind {
		case StateWaiting:
			f.logger.Info().
				Dur("delay", state.Delay).
				Int("next_attempt", state.Attempt).
				Msg("waiting before retry")
			if err := f.sleep(ctx, state.Delay); err != nil {
				return zero, fmt.Errorf("%w: %s: %w", ErrFetchFailed, f.source, err)
			}
			state = Resume(state)

		case StateAttempting, StateAntiBlockAttempting:
			strategy := primaryStrategy()
			if state.Kind == StateAntiBlockAttempting {
				strategy = f.policy.Ladder[state.Rung]
				pause := f.jitter(strategy.MinJitter, strategy.MaxJitter)
				f.logger.Warn().
					Str("strategy", strategy.Name).
					Int("rung", state.Rung+1).
					Dur("pause", pause).
					Msg("trying anti-block strategy")
				if err := f.sleep(ctx, pause); err != nil {
					return zero, fmt.Errorf("%w: %s: %w", ErrFetchFailed, f.source, err)
				}
			}

			result, err := attempt(ctx, f, r, strategy, decode)
			outcome := OutcomeOf(err)
			if outcome == OutcomeSuccess {
				f.logger.Debug().
					Str("strategy", strategy.Name).
					Int("attempt", state.Attempt).
					Msg("fetch succeeded")
				return result, nil
			}

			lastErr = err
			f.logger.Warn().
				Err(err).
				Str("state", state.Kind.String()).
				Str("strategy", strategy.Name).
				Int("attempt", state.Attempt).
				Str("outcome", outcome.String()).
				Str("url", r.logURL).
				Msg("fetch attempt failed")
			state = Next(f.policy, state, outcome)

		case StateFailed:
			f.logger.Error().Err(lastErr).Str("url", r.logURL).Msg("all retry attempts failed")
			return zero, fmt.Errorf("%w: %s: %w", ErrFetchFailed, f.source, lastErr)

		default:
			return zero, fmt.Errorf("%w: %s: unexpected state %s", ErrFetchFailed, f.source, state.Kind)
		}
	}
}

func attempt[T any](ctx context.Context, f *fetcher, r request, s Strategy, decode func([]byte) (T, error)) (result T, err error) {
	// a misbehaving decoder must not take the refresh loop down
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic while decoding: %v", ErrTransient, rec)
		}
	}()

	status, body, err := f.do(ctx, r, s)
	if err != nil {
		return result, err
	}
	if err := classify(status, body); err != nil {
		return result, err
	}
	return decode(body)
}

func (f *fetcher) do(ctx context.Context, r request, s Strategy) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(r.url)
	req.Header.SetMethod(r.method)
	s.apply(req)
	if r.body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(r.body)
	}

	deadline := time.Now().Add(f.policy.AttemptTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := f.client.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}

	f.updateRateLimit(resp)

	body := append([]byte(nil), resp.Body()...)
	return resp.StatusCode(), body, nil
}

type upstreamMessage struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
}

func (m upstreamMessage) text() string {
	if m.Message != "" {
		return m.Message
	}
	return m.Msg
}

// classify turns a transport-level success into an attempt error when the
// status code or body says the data is not usable.
func classify(status int, body []byte) error {
	switch {
	case status == fasthttp.StatusInternalServerError && isRateLimitBody(body):
		return fmt.Errorf("%w: %w", ErrRateLimited, &StatusError{Code: status, Body: truncate(body)})
	case status == fasthttp.StatusForbidden,
		status == fasthttp.StatusTooManyRequests,
		status == fasthttp.StatusServiceUnavailable:
		return fmt.Errorf("%w: %w", ErrBlocked, &StatusError{Code: status, Body: truncate(body)})
	case status < 200 || status > 299:
		return fmt.Errorf("%w: %w", ErrTransient, &StatusError{Code: status, Body: truncate(body)})
	case looksLikeMarkup(body):
		return fmt.Errorf("%w: markup instead of JSON", ErrBlocked)
	case !json.Valid(body):
		return fmt.Errorf("%w: malformed JSON body", ErrTransient)
	}
	return nil
}

func isRateLimitBody(body []byte) bool {
	var m upstreamMessage
	text := string(body)
	if err := json.Unmarshal(body, &m); err == nil && m.text() != "" {
		text = m.Msg + " " + m.Message
	}
	return strings.Contains(strings.ToLower(text), "rate limit")
}

func looksLikeMarkup(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '<'
}

func truncate(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}

func redactKey(key string) string {
	if len(key) <= 8 {
		return "..."
	}
	return key[:8] + "..."
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
