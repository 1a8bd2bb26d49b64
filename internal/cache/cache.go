package cache

import (
	"sync"
	"time"
	"wager-leaderboard/internal/domain"
)

type Slice string

const (
	SliceUpgraderCurrent  Slice = "upgrader_current"
	SliceUpgraderPrevious Slice = "upgrader_previous"
	SliceRainbet          Slice = "rainbet"
)

var Slices = []Slice{SliceUpgraderCurrent, SliceUpgraderPrevious, SliceRainbet}

type entry struct {
	// never mutated after Replace stores it
	rows      []domain.LeaderboardRow
	updatedAt time.Time
}

// Cache holds the latest rows for every slice. A slice is only ever replaced
// as a whole, so readers see either the old or the new rows.
type Cache struct {
	mu      sync.RWMutex
	entries map[Slice]entry
}

type SliceInfo struct {
	Slice     Slice     `json:"slice"`
	Rows      int       `json:"rows"`
	Populated bool      `json:"populated"`
	UpdatedAt time.Time `json:"updated_at"`
}

func New() *Cache {
	return &Cache{entries: make(map[Slice]entry)}
}

// Get returns a copy of the slice's rows, or an empty list when the slice has
// not been populated yet.
func (c *Cache) Get(s Slice) []domain.LeaderboardRow {
	c.mu.RLock()
	e := c.entries[s]
	c.mu.RUnlock()

	out := make([]domain.LeaderboardRow, len(e.rows))
	copy(out, e.rows)
	return out
}

func (c *Cache) Replace(s Slice, rows []domain.LeaderboardRow) {
	stored := make([]domain.LeaderboardRow, len(rows))
	copy(stored, rows)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s] = entry{rows: stored, updatedAt: time.Now()}
}

func (c *Cache) Snapshot() []SliceInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]SliceInfo, 0, len(Slices))
	for _, s := range Slices {
		e, ok := c.entries[s]
		infos = append(infos, SliceInfo{
			Slice:     s,
			Rows:      len(e.rows),
			Populated: ok,
			UpdatedAt: e.updatedAt,
		})
	}
	return infos
}
