package updater

import (
	"context"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"stock_trading_backend/models"
	"stock_trading_backend/services/events"
	"stock_trading_backend/services/indicators"
	"stock_trading_backend/services/marketdata"
	"stock_trading_backend/services/prediction"
	"stock_trading_backend/services/signals"
	"stock_trading_backend/services/trading"
)

// Evaluation is the full per-symbol analysis result: the refreshed
// price, each stage's signal, and the market conditions that were
// applied.
type Evaluation struct {
	Symbol         string                 `json:"symbol"`
	CurrentPrice   float64                `json:"current_price"`
	PreviousClose  float64                `json:"previous_close"`
	RuleScore      signals.Score          `json:"rule_score"`
	ModelSignal    models.Signal          `json:"model_signal"`
	ModelAvailable bool                   `json:"model_available"`
	FusedSignal    models.Signal          `json:"fused_signal"`
	FinalSignal    models.Signal          `json:"final_signal"`
	Conditions     models.MarketCondition `json:"conditions"`

	// latest indicator values; may contain NaN for warm-up periods, so
	// callers serialize it themselves
	Indicators map[string]float64 `json:"-"`
}

// Scheduler runs the periodic market update loop: refresh cached bars,
// recompute indicators, fuse and filter the signal, emit events, and
// hand the result to the trading bot. One symbol's failure never stops
// the loop; only Stop does.
type Scheduler struct {
	db        *gorm.DB
	cache     *marketdata.Cache
	predictor *prediction.Predictor
	scorer    signals.RuleScorer
	bot       *trading.Bot
	sink      events.Sink
	interval  time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}

	// guards against overlapping cycles when one runs longer than the
	// tick interval: ticks are skipped, not queued
	cycleMu sync.Mutex
}

// NewScheduler wires the update loop together.
func NewScheduler(db *gorm.DB, cache *marketdata.Cache, predictor *prediction.Predictor, bot *trading.Bot, sink events.Sink, interval time.Duration) *Scheduler {
	return &Scheduler{
		db:        db,
		cache:     cache,
		predictor: predictor,
		bot:       bot,
		sink:      sink,
		interval:  interval,
	}
}

// Start launches the background loop. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	go s.run()
	log.Printf("Update scheduler started, interval %s", s.interval)
}

// Stop requests a cooperative shutdown and waits for the loop to honor
// it at the next tick boundary. A cycle in progress runs to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
	log.Println("Update scheduler stopped")
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if !s.cycleMu.TryLock() {
				continue // previous cycle still running, skip this tick
			}
			s.runCycle()
			s.cycleMu.Unlock()
		}
	}
}

// runCycle processes every tracked symbol once.
func (s *Scheduler) runCycle() {
	var stocks []models.TrackedStock
	if err := s.db.Find(&stocks).Error; err != nil {
		log.Printf("Failed to load tracked symbols: %v", err)
		return
	}

	ctx := context.Background()
	for _, stock := range stocks {
		select {
		case <-s.stopChan:
			return
		default:
		}
		s.processSymbol(ctx, stock.Symbol)
	}
}

// processSymbol runs one symbol's full update. Errors and panics are
// contained here so the cycle moves on to the next symbol.
func (s *Scheduler) processSymbol(ctx context.Context, symbol string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic while processing %s: %v", symbol, r)
		}
	}()

	ev, err := s.Evaluate(ctx, symbol)
	if err != nil {
		log.Printf("Skipping %s this cycle: %v", symbol, err)
		return
	}

	s.sink.Publish(events.TypePriceUpdate, events.PriceUpdate{
		Symbol:       ev.Symbol,
		CurrentPrice: ev.CurrentPrice,
	})
	s.sink.Publish(events.TypeStockUpdate, events.StockUpdate{
		Symbol:           ev.Symbol,
		CurrentPrice:     ev.CurrentPrice,
		PreviousDayPrice: ev.PreviousClose,
		Signal:           string(ev.FinalSignal),
	})

	s.bot.OnSignal(ev.Symbol, ev.FinalSignal, ev.CurrentPrice)
}

// Evaluate refreshes one symbol and runs the full signal pipeline. It
// is also used by the on-demand analysis endpoint.
func (s *Scheduler) Evaluate(ctx context.Context, symbol string) (*Evaluation, error) {
	bars, err := s.cache.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, marketdata.ErrDataUnavailable
	}

	set := indicators.Compute(bars)

	ev := &Evaluation{
		Symbol:       symbol,
		CurrentPrice: bars[len(bars)-1].Close,
	}
	if len(bars) > 1 {
		ev.PreviousClose = bars[len(bars)-2].Close
	}

	ev.Indicators = set.LatestRow()
	ev.RuleScore = s.scorer.Evaluate(set)
	ev.ModelSignal, ev.ModelAvailable = s.predictor.Predict(symbol, ev.Indicators)
	ev.FusedSignal = signals.Fuse(ev.RuleScore.Signal, ev.ModelSignal, ev.ModelAvailable)
	ev.FinalSignal, ev.Conditions = signals.FilterSignal(symbol, ev.FusedSignal, set)
	return ev, nil
}
