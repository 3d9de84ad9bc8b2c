package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stock_trading_backend/models"
	"stock_trading_backend/services/ledger"
	"stock_trading_backend/services/trading"
)

// BotController handles automated-trading configuration requests
type BotController struct {
	bot    *trading.Bot
	ledger *ledger.Ledger
}

// NewBotController creates a new bot controller
func NewBotController(bot *trading.Bot, l *ledger.Ledger) *BotController {
	return &BotController{bot: bot, ledger: l}
}

// GetConfig returns the bot configuration
// GET /api/bot/config
func (bc *BotController) GetConfig(c *gin.Context) {
	cfg, err := bc.bot.Config()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bot config"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

// UpdateConfig replaces the bot configuration
// PUT /api/bot/config
func (bc *BotController) UpdateConfig(c *gin.Context) {
	var req struct {
		IsActive              bool    `json:"is_active"`
		MaxInvestmentPerTrade float64 `json:"max_investment_per_trade" binding:"required,gt=0"`
		ProfitTargetPct       float64 `json:"profit_target_pct" binding:"required,gt=0"`
		StopLossPct           float64 `json:"stop_loss_pct" binding:"required,gt=0"`
		MaxTradesPerDay       int     `json:"max_trades_per_day" binding:"required,gt=0"`
		MaxOpenPositions      int     `json:"max_open_positions" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All limits are required and must be positive"})
		return
	}

	cfg, err := bc.bot.UpdateConfig(models.BotConfig{
		IsActive:              req.IsActive,
		MaxInvestmentPerTrade: decimal.NewFromFloat(req.MaxInvestmentPerTrade),
		ProfitTargetPct:       decimal.NewFromFloat(req.ProfitTargetPct),
		StopLossPct:           decimal.NewFromFloat(req.StopLossPct),
		MaxTradesPerDay:       req.MaxTradesPerDay,
		MaxOpenPositions:      req.MaxOpenPositions,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update bot config"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

// Reset deletes the bot's trade history. Manual transactions and the
// wallet balance are untouched.
// POST /api/bot/reset
func (bc *BotController) Reset(c *gin.Context) {
	deleted, err := bc.ledger.ResetBotPerformance()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset bot performance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bot performance reset", "deleted": deleted})
}

// GetStatus returns the bot's current activity counters
// GET /api/bot/status
func (bc *BotController) GetStatus(c *gin.Context) {
	cfg, err := bc.bot.Config()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bot config"})
		return
	}

	tradesToday, err := bc.ledger.BotTradesToday()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count trades"})
		return
	}

	openPositions, err := bc.ledger.OpenSymbolCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count positions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"is_active":          cfg.IsActive,
			"trades_today":       tradesToday,
			"open_positions":     openPositions,
			"max_trades_per_day": cfg.MaxTradesPerDay,
			"max_open_positions": cfg.MaxOpenPositions,
		},
	})
}
