package leaderboard

import (
	"sort"
	"wager-leaderboard/internal/api"
	"wager-leaderboard/internal/constants"
	"wager-leaderboard/internal/domain"

	"github.com/shopspring/decimal"
)

// MaskUsername hides the middle of a username, e.g. "coolguy17" -> "co***17".
// Names of four characters or fewer are returned as-is.
func MaskUsername(name string) string {
	r := []rune(name)
	if len(r) <= 4 {
		return name
	}
	return string(r[:2]) + "***" + string(r[len(r)-2:])
}

// FormatUpgrader converts summarized bets (wager in cents) into public rows.
func FormatUpgrader(bets []api.SummarizedBet) []domain.LeaderboardRow {
	rows := make([]domain.LeaderboardRow, 0, len(bets))
	for _, b := range bets {
		wagered := decimal.New(b.Wager, -2).InexactFloat64()
		rows = append(rows, domain.LeaderboardRow{
			Username:      MaskUsername(b.User.Username),
			Wagered:       wagered,
			WeightedWager: wagered,
		})
	}
	return rows
}

// FormatRainbet ranks affiliates by wagered amount, keeps the top ten and
// rounds amounts to whole units. Unparsable amounts rank as zero.
func FormatRainbet(affiliates []api.Affiliate) []domain.LeaderboardRow {
	type ranked struct {
		username string
		amount   decimal.Decimal
	}

	entries := make([]ranked, 0, len(affiliates))
	for _, a := range affiliates {
		amount, err := decimal.NewFromString(a.WageredAmount)
		if err != nil {
			amount = decimal.Zero
		}
		entries = append(entries, ranked{username: a.Username, amount: amount})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].amount.GreaterThan(entries[j].amount)
	})

	if len(entries) > constants.RainbetTopN {
		entries = entries[:constants.RainbetTopN]
	}

	rows := make([]domain.LeaderboardRow, 0, len(entries))
	for _, e := range entries {
		wagered := e.amount.Round(0).InexactFloat64()
		rows = append(rows, domain.LeaderboardRow{
			Username:      MaskUsername(e.username),
			Wagered:       wagered,
			WeightedWager: wagered,
		})
	}
	return rows
}
