package marketdata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_trading_backend/models"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls []int // days argument of each call
	fetch func(symbol string, days int) ([]models.Bar, error)
}

func (p *fakeProvider) FetchDailyBars(_ context.Context, symbol string, days int) ([]models.Bar, error) {
	p.mu.Lock()
	p.calls = append(p.calls, days)
	p.mu.Unlock()
	return p.fetch(symbol, days)
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func day(n int) time.Time {
	return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func seriesOf(closes ...float64) []models.Bar {
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{Date: day(i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return bars
}

func TestGetFetchesFullHistoryFirst(t *testing.T) {
	p := &fakeProvider{fetch: func(string, int) ([]models.Bar, error) {
		return seriesOf(10, 11, 12), nil
	}}
	c := NewCache(p, time.Hour, 365, time.Second)

	bars, err := c.Get(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.Equal(t, []int{365}, p.calls)
}

func TestFreshEntryTopsUpLatestBar(t *testing.T) {
	full := seriesOf(10, 11, 12)
	p := &fakeProvider{}
	p.fetch = func(_ string, days int) ([]models.Bar, error) {
		if days == 365 {
			return full, nil
		}
		// intraday update of the same session: close moved 12 -> 12.5
		updated := seriesOf(10, 11, 12.5)
		return updated[1:], nil
	}
	c := NewCache(p, time.Hour, 365, time.Second)

	_, err := c.Get(context.Background(), "AAA")
	require.NoError(t, err)

	bars, err := c.Get(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Len(t, bars, 3, "same-day bar replaces, never duplicates")
	assert.Equal(t, 12.5, bars[2].Close)
	assert.Equal(t, []int{365, latestFetchDays}, p.calls)
}

func TestFreshEntryAppendsNewDay(t *testing.T) {
	p := &fakeProvider{}
	p.fetch = func(_ string, days int) ([]models.Bar, error) {
		if days == 365 {
			return seriesOf(10, 11, 12), nil
		}
		return []models.Bar{{Date: day(3), Open: 13, High: 14, Low: 12, Close: 13, Volume: 1000}}, nil
	}
	c := NewCache(p, time.Hour, 365, time.Second)

	_, err := c.Get(context.Background(), "AAA")
	require.NoError(t, err)

	bars, err := c.Get(context.Background(), "AAA")
	require.NoError(t, err)
	require.Len(t, bars, 4)
	assert.Equal(t, 13.0, bars[3].Close)
	assert.True(t, bars[3].Date.After(bars[2].Date))
}

func TestStaleEntryRefetchesFullHistory(t *testing.T) {
	p := &fakeProvider{fetch: func(string, int) ([]models.Bar, error) {
		return seriesOf(10, 11, 12), nil
	}}
	c := NewCache(p, time.Millisecond, 365, time.Second)

	_, err := c.Get(context.Background(), "AAA")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, err = c.Get(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Equal(t, []int{365, 365}, p.calls)
}

func TestInvalidateForcesFullRefetch(t *testing.T) {
	p := &fakeProvider{fetch: func(string, int) ([]models.Bar, error) {
		return seriesOf(10, 11, 12), nil
	}}
	c := NewCache(p, time.Hour, 365, time.Second)

	_, err := c.Get(context.Background(), "AAA")
	require.NoError(t, err)
	c.Invalidate("AAA")

	_, err = c.Get(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Equal(t, []int{365, 365}, p.calls)
}

func TestFailingProviderRetriesThenErrors(t *testing.T) {
	p := &fakeProvider{fetch: func(string, int) ([]models.Bar, error) {
		return nil, ErrDataUnavailable
	}}
	c := NewCache(p, time.Hour, 365, 50*time.Millisecond)

	_, err := c.Get(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.Equal(t, maxAttempts, p.callCount())

	// failure leaves no cached entry behind
	_, ok := c.Peek("NOPE")
	assert.False(t, ok)
}

func TestTransientFailureRecovers(t *testing.T) {
	var n int
	p := &fakeProvider{}
	p.fetch = func(string, int) ([]models.Bar, error) {
		n++
		if n == 1 {
			return nil, errors.New("connection reset")
		}
		return seriesOf(10, 11), nil
	}
	c := NewCache(p, time.Hour, 365, time.Second)

	bars, err := c.Get(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Len(t, bars, 2)
	assert.Equal(t, 2, p.callCount())
}

func TestPeekDoesNotFetch(t *testing.T) {
	p := &fakeProvider{fetch: func(string, int) ([]models.Bar, error) {
		return seriesOf(10), nil
	}}
	c := NewCache(p, time.Hour, 365, time.Second)

	_, ok := c.Peek("AAA")
	assert.False(t, ok)
	assert.Zero(t, p.callCount())

	_, err := c.Get(context.Background(), "AAA")
	require.NoError(t, err)

	bars, ok := c.Peek("AAA")
	assert.True(t, ok)
	assert.Len(t, bars, 1)
	assert.Equal(t, 1, p.callCount())
}

func TestGetReturnsCopies(t *testing.T) {
	p := &fakeProvider{fetch: func(string, int) ([]models.Bar, error) {
		return seriesOf(10, 11), nil
	}}
	c := NewCache(p, time.Hour, 365, time.Second)

	first, err := c.Get(context.Background(), "AAA")
	require.NoError(t, err)
	first[0].Close = -1

	second, ok := c.Peek("AAA")
	require.True(t, ok)
	assert.Equal(t, 10.0, second[0].Close, "callers cannot mutate the cached series")
}
