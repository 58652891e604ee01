package provider

import (
	"strings"
	"sync"
	"time"

	"oraculum/pkg/model"
)

// Key identifies one cached request
type Key struct {
	Ticker string
	Start  string
	End    string
}

// NewKey normalizes a request: upper-case ticker, "" for open bounds
func NewKey(ticker string, r DateRange) Key {
	return Key{
		Ticker: NormalizeTicker(ticker),
		Start:  model.FormatDate(r.Start),
		End:    model.FormatDate(r.End),
	}
}

func (k Key) String() string {
	return k.Ticker + "|" + k.Start + "|" + k.End
}

// NormalizeTicker trims and upper-cases a ticker symbol
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Entry is one cached series
type Entry struct {
	Series   *model.PriceSeries
	StoredAt time.Time
}

// Cache holds fetched series for the life of the process, or until ttl passes.
// The lock is never held across a fetch.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache; ttl <= 0 keeps entries forever
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[Key]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached series for k if present, non-empty and fresh
func (c *Cache) Get(k Key) (*model.PriceSeries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok || e.Series.Len() == 0 {
		return nil, false
	}
	if c.expired(e) {
		delete(c.entries, k)
		return nil, false
	}
	return e.Series, true
}

// Put stores a non-empty series under k
func (c *Cache) Put(k Key, s *model.PriceSeries) {
	if s.Len() == 0 {
		return
	}
	c.mu.Lock()
	c.entries[k] = Entry{Series: s, StoredAt: c.now()}
	c.mu.Unlock()
}

// Sweep drops expired entries and returns how many were removed
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, expired or not
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) expired(e Entry) bool {
	return c.ttl > 0 && c.now().Sub(e.StoredAt) > c.ttl
}
