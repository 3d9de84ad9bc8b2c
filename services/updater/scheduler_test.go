package updater

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stock_trading_backend/models"
	"stock_trading_backend/services/events"
	"stock_trading_backend/services/ledger"
	"stock_trading_backend/services/marketdata"
	"stock_trading_backend/services/prediction"
	"stock_trading_backend/services/trading"
)

type scriptProvider struct{}

func (scriptProvider) FetchDailyBars(_ context.Context, symbol string, _ int) ([]models.Bar, error) {
	if symbol == "BAD" {
		return nil, marketdata.ErrDataUnavailable
	}
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, 10)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = models.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return bars, nil
}

type countingSink struct {
	mu       sync.Mutex
	messages []events.Message
}

func (s *countingSink) Publish(eventType string, data interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, events.NewMessage(eventType, data))
}

func (s *countingSink) byType(eventType string) []events.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Message
	for _, m := range s.messages {
		if m.Type == eventType {
			out = append(out, m)
		}
	}
	return out
}

func newTestScheduler(t *testing.T) (*Scheduler, *countingSink, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "updater.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.MigrateMarketModels(db))
	require.NoError(t, models.MigratePortfolioModels(db))

	book := ledger.New(db)
	require.NoError(t, book.EnsureWallet(decimal.NewFromInt(10000)))

	sink := &countingSink{}
	bot := trading.NewBot(db, book, sink)
	require.NoError(t, bot.EnsureConfig())

	cache := marketdata.NewCache(scriptProvider{}, time.Hour, 365, time.Second)
	predictor := prediction.NewPredictor(filepath.Join(t.TempDir(), "models"))

	return NewScheduler(db, cache, predictor, bot, sink, 10*time.Millisecond), sink, db
}

func TestEvaluateProducesSignalAndPrices(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	ev, err := s.Evaluate(context.Background(), "GOOD")
	require.NoError(t, err)
	assert.Equal(t, "GOOD", ev.Symbol)
	assert.Equal(t, 109.0, ev.CurrentPrice)
	assert.Equal(t, 108.0, ev.PreviousClose)
	// 10 bars is under the scoring minimum, and no model is trained
	assert.Equal(t, models.SignalHold, ev.FinalSignal)
	assert.False(t, ev.ModelAvailable)
	assert.NotEmpty(t, ev.Indicators)
}

func TestEvaluateUnknownSymbol(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	_, err := s.Evaluate(context.Background(), "BAD")
	assert.ErrorIs(t, err, marketdata.ErrDataUnavailable)
}

func TestCycleSkipsFailingSymbolAndContinues(t *testing.T) {
	s, sink, db := newTestScheduler(t)
	require.NoError(t, db.Create(&models.TrackedStock{Symbol: "BAD"}).Error)
	require.NoError(t, db.Create(&models.TrackedStock{Symbol: "GOOD"}).Error)
	s.stopChan = make(chan struct{})

	s.runCycle()

	updates := sink.byType(events.TypeStockUpdate)
	require.Len(t, updates, 1, "only the healthy symbol emits an update")
	update, ok := updates[0].Data.(events.StockUpdate)
	require.True(t, ok)
	assert.Equal(t, "GOOD", update.Symbol)
	assert.Equal(t, 109.0, update.CurrentPrice)

	assert.Len(t, sink.byType(events.TypePriceUpdate), 1)
}

func TestStartStop(t *testing.T) {
	s, sink, db := newTestScheduler(t)
	require.NoError(t, db.Create(&models.TrackedStock{Symbol: "GOOD"}).Error)

	s.Start()
	assert.True(t, s.IsRunning())
	time.Sleep(50 * time.Millisecond)
	s.Stop()
	assert.False(t, s.IsRunning())

	// at least one cycle ran before the stop
	assert.NotEmpty(t, sink.byType(events.TypeStockUpdate))

	// stopping twice is safe
	s.Stop()
}
