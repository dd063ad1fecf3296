package recommend

import (
	"fmt"
	"time"

	"github.com/goodtune/tokentimer/internal/settings"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of memoized inputs.
const DefaultCacheSize = 64

// Revisioned is a Usage whose mutations bump a revision counter.
type Revisioned interface {
	Usage
	Revision() uint64
}

type cacheKey struct {
	revision  uint64
	hour      string
	balance   int
	dailyGoal int
}

// Cache memoizes Recommend per usage revision, local hour, balance and goal.
type Cache struct {
	entries *lru.Cache[cacheKey, []Recommendation]
}

// NewCache creates a cache holding up to size results.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[cacheKey, []Recommendation](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create recommendation cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Get returns cached recommendations or computes and stores them.
func (c *Cache) Get(u Revisioned, s settings.Settings, balance int, now time.Time) []Recommendation {
	goal := -1
	if s.DailyGoalMinutes != nil {
		goal = *s.DailyGoalMinutes
	}
	key := cacheKey{
		revision:  u.Revision(),
		hour:      now.In(u.Location()).Format("2006-01-02T15"),
		balance:   balance,
		dailyGoal: goal,
	}

	if recs, ok := c.entries.Get(key); ok {
		return append([]Recommendation(nil), recs...)
	}

	recs := Recommend(u, s, balance, now)
	c.entries.Add(key, recs)
	return append([]Recommendation(nil), recs...)
}

// Purge drops every cached result.
func (c *Cache) Purge() {
	c.entries.Purge()
}

// Len reports the number of cached results.
func (c *Cache) Len() int {
	return c.entries.Len()
}
