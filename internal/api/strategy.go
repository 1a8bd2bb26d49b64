package api

import (
	"math/rand/v2"
	"time"
	"wager-leaderboard/internal/constants"

	"github.com/valyala/fasthttp"
)

type header struct {
	key   string
	value string
}

// Strategy shapes the request headers of one attempt and the randomized pause
// taken before it is sent.
type Strategy struct {
	Name      string
	Headers   []header
	MinJitter time.Duration
	MaxJitter time.Duration
}

func (s Strategy) apply(req *fasthttp.Request) {
	for _, h := range s.Headers {
		req.Header.Set(h.key, h.value)
	}
}

func primaryStrategy() Strategy {
	return Strategy{
		Name: "primary",
		Headers: []header{
			{"User-Agent", constants.DefaultUserAgent},
		},
	}
}

// DefaultLadder is tried in order once ordinary attempts report blocking.
func DefaultLadder() []Strategy {
	return []Strategy{
		{
			Name: "browser",
			Headers: []header{
				{"User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"},
				{"Accept", "application/json, text/plain, */*"},
				{"Accept-Language", "en-US,en;q=0.9"},
				{"Cache-Control", "no-cache"},
				{"Pragma", "no-cache"},
				{"Sec-Fetch-Dest", "empty"},
				{"Sec-Fetch-Mode", "cors"},
				{"Sec-Fetch-Site", "same-site"},
			},
			MinJitter: 1 * time.Second,
			MaxJitter: 3 * time.Second,
		},
		{
			Name: "alternate_agent",
			Headers: []header{
				{"User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 14.4; rv:125.0) Gecko/20100101 Firefox/125.0"},
				{"Accept", "application/json"},
				{"X-Requested-With", "XMLHttpRequest"},
			},
			MinJitter: 2 * time.Second,
			MaxJitter: 5 * time.Second,
		},
		{
			Name: "minimal",
			Headers: []header{
				{"User-Agent", "curl/8.5.0"},
				{"Accept", "*/*"},
			},
			MinJitter: 3 * time.Second,
			MaxJitter: 8 * time.Second,
		},
	}
}

func randomJitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}
