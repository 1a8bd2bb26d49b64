package period

import (
	"time"
	"wager-leaderboard/internal/constants"
)

// BiweeklyAnchor is the start of the first 14-day reporting window.
var BiweeklyAnchor = time.Date(2025, time.September, 18, 0, 0, 0, 0, time.UTC)

type Period struct {
	From time.Time
	To   time.Time
}

type Periods struct {
	Current  Period
	Previous Period
}

// Biweekly returns the fixed-length window containing now and the one right
// before it. To is inclusive, one millisecond before the next window starts.
func Biweekly(now time.Time) Periods {
	return fixedWindows(now, BiweeklyAnchor, constants.BiweeklyPeriodLength)
}

func fixedWindows(now, anchor time.Time, length time.Duration) Periods {
	elapsed := floorDiv(int64(now.Sub(anchor)), int64(length))
	currentStart := anchor.Add(time.Duration(elapsed) * length)

	return Periods{
		Current: Period{
			From: currentStart,
			To:   currentStart.Add(length - time.Millisecond),
		},
		Previous: Period{
			From: currentStart.Add(-length),
			To:   currentStart.Add(-time.Millisecond),
		},
	}
}

// Monthly returns the calendar month (UTC) containing now and the month
// before it. Both bounds are midnight of the first and last day.
func Monthly(now time.Time) Periods {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	prevFirst := first.AddDate(0, -1, 0)

	return Periods{
		Current:  Period{From: first, To: first.AddDate(0, 1, -1)},
		Previous: Period{From: prevFirst, To: first.AddDate(0, 0, -1)},
	}
}

// FormatDate renders t as YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
