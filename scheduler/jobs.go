package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"gorm.io/gorm"

	"stock_trading_backend/models"
	"stock_trading_backend/services/marketdata"
	"stock_trading_backend/services/prediction"
)

// Scheduler manages the daily maintenance jobs
type Scheduler struct {
	cron      *gocron.Scheduler
	db        *gorm.DB
	cache     *marketdata.Cache
	predictor *prediction.Predictor
	syncTime  string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(db *gorm.DB, cache *marketdata.Cache, predictor *prediction.Predictor, syncTime string) *Scheduler {
	return &Scheduler{
		cron:      gocron.NewScheduler(time.UTC),
		db:        db,
		cache:     cache,
		predictor: predictor,
		syncTime:  syncTime,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Refresh the full price history daily after market close
	s.cron.Every(1).Day().At(s.syncTime).Do(func() {
		s.refreshHistory()
	})

	// Reload prediction model artifacts daily so retrained models are
	// picked up without a restart
	s.cron.Every(1).Day().At(s.syncTime).Do(func() {
		if err := s.predictor.Reload(); err != nil {
			log.Printf("Error reloading prediction models: %v", err)
		}
	})

	s.cron.StartAsync()
	log.Println("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// refreshHistory invalidates every cached series and warms the tracked
// symbols back up with a full historical fetch.
func (s *Scheduler) refreshHistory() {
	log.Println("Refreshing daily price history...")

	s.cache.InvalidateAll()

	var stocks []models.TrackedStock
	if err := s.db.Find(&stocks).Error; err != nil {
		log.Printf("Error loading tracked symbols: %v", err)
		return
	}

	ctx := context.Background()
	for _, stock := range stocks {
		if _, err := s.cache.Get(ctx, stock.Symbol); err != nil {
			log.Printf("Error refreshing history for %s: %v", stock.Symbol, err)
		}
	}

	log.Printf("Refreshed history for %d symbols", len(stocks))
}
