package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chartJSON(timestamps []int64, closes []interface{}) string {
	ts := ""
	for i, t := range timestamps {
		if i > 0 {
			ts += ","
		}
		ts += fmt.Sprintf("%d", t)
	}
	quote := ""
	for i, c := range closes {
		if i > 0 {
			quote += ","
		}
		if c == nil {
			quote += "null"
		} else {
			quote += fmt.Sprintf("%v", c)
		}
	}
	return fmt.Sprintf(`{"chart":{"result":[{"timestamp":[%s],"indicators":{"quote":[{"open":[%s],"high":[%s],"low":[%s],"close":[%s],"volume":[%s]}]}}],"error":null}}`,
		ts, quote, quote, quote, quote, quote)
}

func testProvider(handler http.HandlerFunc) (*YahooProvider, *httptest.Server) {
	srv := httptest.NewServer(handler)
	p := NewYahooProvider(".NS", time.Second)
	p.baseURL = srv.URL
	return p, srv
}

func TestFetchDailyBarsParsesAndSorts(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	// out of order on purpose
	timestamps := []int64{base.AddDate(0, 0, 1).Unix(), base.Unix(), base.AddDate(0, 0, 2).Unix()}

	var gotPath string
	p, srv := testProvider(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, chartJSON(timestamps, []interface{}{101.0, 100.0, 102.0}))
	})
	defer srv.Close()

	bars, err := p.FetchDailyBars(context.Background(), "RELIANCE", 365)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, "/v8/finance/chart/RELIANCE.NS", gotPath)
	assert.Equal(t, 100.0, bars[0].Close)
	assert.Equal(t, 102.0, bars[2].Close)
	assert.True(t, bars[0].Date.Before(bars[1].Date))
}

func TestFetchDailyBarsSkipsNullBars(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	timestamps := []int64{base.Unix(), base.AddDate(0, 0, 1).Unix(), base.AddDate(0, 0, 2).Unix()}

	p, srv := testProvider(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartJSON(timestamps, []interface{}{100.0, nil, 102.0}))
	})
	defer srv.Close()

	bars, err := p.FetchDailyBars(context.Background(), "TCS", 365)
	require.NoError(t, err)
	assert.Len(t, bars, 2, "holiday bars are dropped")
}

func TestFetchDailyBarsShortQuoteArrays(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	timestamps := []int64{base.Unix(), base.AddDate(0, 0, 1).Unix(), base.AddDate(0, 0, 2).Unix()}

	// quote arrays one element shorter than the timestamp list
	p, srv := testProvider(func(w http.ResponseWriter, r *http.Request) {
		ts := fmt.Sprintf("%d,%d,%d", timestamps[0], timestamps[1], timestamps[2])
		fmt.Fprintf(w, `{"chart":{"result":[{"timestamp":[%s],"indicators":{"quote":[{"open":[100.0,101.0],"high":[100.0,101.0],"low":[100.0,101.0],"close":[100.0,101.0],"volume":[1000,1000]}]}}],"error":null}}`, ts)
	})
	defer srv.Close()

	bars, err := p.FetchDailyBars(context.Background(), "WIPRO", 365)
	require.NoError(t, err)
	assert.Len(t, bars, 2, "trailing timestamps without quote data are dropped")
}

func TestFetchDailyBarsUnknownSymbol(t *testing.T) {
	p, srv := testProvider(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	_, err := p.FetchDailyBars(context.Background(), "NOPE", 365)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestFetchDailyBarsEmptyResult(t *testing.T) {
	p, srv := testProvider(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[],"error":null}}`)
	})
	defer srv.Close()

	_, err := p.FetchDailyBars(context.Background(), "EMPTY", 365)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestTickerSuffix(t *testing.T) {
	p := NewYahooProvider(".NS", time.Second)

	assert.Equal(t, "INFY.NS", p.ticker("INFY"))
	assert.Equal(t, "AAPL.US", p.ticker("AAPL.US"), "qualified symbols pass through")
	assert.Equal(t, "^NSEI", p.ticker("^NSEI"), "indices pass through")
}

func TestRangeFor(t *testing.T) {
	assert.Equal(t, "1mo", rangeFor(20))
	assert.Equal(t, "1y", rangeFor(365))
	assert.Equal(t, "2y", rangeFor(500))
}
