package marketdata

import (
	"context"
	"log"
	"sync"
	"time"

	"stock_trading_backend/models"
)

// fetch attempts per refresh, with exponential backoff between them
var retryDelays = []time.Duration{time.Second, 2 * time.Second}

const maxAttempts = 3

// latestFetchDays is the short window used for incremental updates.
const latestFetchDays = 5

// Cache holds a per-symbol ordered bar series with staleness-based
// refresh. Reads of one symbol never block refreshes of another, but
// concurrent refreshes of the same symbol are serialized so duplicate
// bars cannot race in.
type Cache struct {
	provider     Provider
	maxAge       time.Duration
	historyDays  int
	fetchTimeout time.Duration

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu        sync.Mutex
	bars      []models.Bar
	fetchedAt time.Time
}

// NewCache creates a cache over the given provider. maxAge controls
// when a full historical refetch happens; fetchTimeout bounds each
// fetch attempt.
func NewCache(provider Provider, maxAge time.Duration, historyDays int, fetchTimeout time.Duration) *Cache {
	return &Cache{
		provider:     provider,
		maxAge:       maxAge,
		historyDays:  historyDays,
		fetchTimeout: fetchTimeout,
		entries:      make(map[string]*entry),
	}
}

func (c *Cache) entryFor(symbol string) *entry {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()
	if ok {
		return e
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok = c.entries[symbol]; ok {
		return e
	}
	e = &entry{}
	c.entries[symbol] = e
	return e
}

// Get returns the refreshed bar series for a symbol. Absent or stale
// entries trigger a full historical refetch; fresh entries are topped
// up with just the latest bar, deduplicated by date.
func (c *Cache) Get(ctx context.Context, symbol string) ([]models.Bar, error) {
	e := c.entryFor(symbol)
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.bars) == 0 || time.Since(e.fetchedAt) > c.maxAge {
		bars, err := c.fetchWithRetry(ctx, symbol, c.historyDays)
		if err != nil {
			return nil, err
		}
		e.bars = bars
		e.fetchedAt = time.Now()
		return cloneBars(e.bars), nil
	}

	latest, err := c.fetchWithRetry(ctx, symbol, latestFetchDays)
	if err != nil {
		return nil, err
	}
	if len(latest) > 0 {
		newest := latest[len(latest)-1]
		last := e.bars[len(e.bars)-1]
		if newest.SameDay(last) {
			// same session: replace with the updated bar
			e.bars[len(e.bars)-1] = newest
		} else if newest.Date.After(last.Date) {
			e.bars = append(e.bars, newest)
		}
	}
	return cloneBars(e.bars), nil
}

// Peek returns the cached series without refreshing. The second return
// value is false when nothing is cached yet.
func (c *Cache) Peek(symbol string) ([]models.Bar, bool) {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.bars) == 0 {
		return nil, false
	}
	return cloneBars(e.bars), true
}

// Invalidate marks a symbol's entry stale so the next Get performs a
// full historical refetch.
func (c *Cache) Invalidate(symbol string) {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.fetchedAt = time.Time{}
	e.mu.Unlock()
}

// InvalidateAll marks every cached symbol stale.
func (c *Cache) InvalidateAll() {
	c.mu.RLock()
	symbols := make([]string, 0, len(c.entries))
	for symbol := range c.entries {
		symbols = append(symbols, symbol)
	}
	c.mu.RUnlock()
	for _, symbol := range symbols {
		c.Invalidate(symbol)
	}
}

// fetchWithRetry performs up to maxAttempts bounded fetch attempts with
// exponential backoff. A hanging provider counts as a failed attempt
// once the per-attempt timeout expires.
func (c *Cache) fetchWithRetry(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := retryDelays[attempt-1]
			log.Printf("Retrying fetch for %s in %s (attempt %d/%d)", symbol, delay, attempt+1, maxAttempts)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
		bars, err := c.provider.FetchDailyBars(attemptCtx, symbol, days)
		cancel()
		if err == nil {
			return bars, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func cloneBars(bars []models.Bar) []models.Bar {
	out := make([]models.Bar, len(bars))
	copy(out, bars)
	return out
}
