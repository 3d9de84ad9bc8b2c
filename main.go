package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stock_trading_backend/config"
	"stock_trading_backend/controllers"
	"stock_trading_backend/middleware"
	"stock_trading_backend/models"
	"stock_trading_backend/routes"
	"stock_trading_backend/scheduler"
	"stock_trading_backend/services/events"
	"stock_trading_backend/services/ledger"
	"stock_trading_backend/services/marketdata"
	"stock_trading_backend/services/prediction"
	"stock_trading_backend/services/trading"
	"stock_trading_backend/services/updater"
)

func main() {
	log.Println("==============================================")
	log.Println("  Stock Trading Backend - Starting...")
	log.Println("==============================================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}

	log.Println("Running database migrations...")
	if err := models.MigrateMarketModels(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if err := models.MigratePortfolioModels(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	// Websocket hub for event delivery
	hub := events.NewHub()
	go hub.Run()

	// Ledger and trading bot, seeded on first startup
	book := ledger.New(db)
	if err := book.EnsureWallet(decimal.NewFromFloat(cfg.InitialBalance)); err != nil {
		log.Fatalf("Wallet initialization failed: %v", err)
	}
	bot := trading.NewBot(db, book, hub)
	if err := bot.EnsureConfig(); err != nil {
		log.Fatalf("Bot config initialization failed: %v", err)
	}

	// Market data pipeline
	provider := marketdata.NewYahooProvider(cfg.ExchangeSuffix, cfg.FetchTimeout)
	cache := marketdata.NewCache(provider, cfg.CacheMaxAge, cfg.HistoryDays, cfg.FetchTimeout)

	// Prediction model artifacts; an empty directory is fine, signals
	// then come from rules alone
	predictor := prediction.NewPredictor(cfg.ModelDir)

	// Background update loop and daily jobs
	updateLoop := updater.NewScheduler(db, cache, predictor, bot, hub, cfg.UpdateInterval)
	updateLoop.Start()
	jobScheduler := scheduler.NewScheduler(db, cache, predictor, cfg.DailySyncTime)
	jobScheduler.Start()

	// HTTP layer
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger())
	limiter := middleware.NewRateLimiter(60, time.Minute)
	router.Use(limiter.Middleware())

	stockController := controllers.NewStockController(db, cache, updateLoop, cfg.ResponseBars)
	portfolioController := controllers.NewPortfolioController(book, cache, hub)
	botController := controllers.NewBotController(bot, book)
	routes.SetupRoutes(router, stockController, portfolioController, botController, hub)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	gracefulShutdown(server, updateLoop, jobScheduler, limiter, hub, db)
}

// gracefulShutdown stops the background loops, drains the websocket hub
// and shuts the HTTP server down in order.
func gracefulShutdown(server *http.Server, updateLoop *updater.Scheduler, jobScheduler *scheduler.Scheduler, limiter *middleware.RateLimiter, hub *events.Hub, db *gorm.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	updateLoop.Stop()
	jobScheduler.Stop()
	limiter.Stop()
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
		log.Println("Database connection closed")
	}

	log.Println("Server shutdown completed")
}
