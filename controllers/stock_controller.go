package controllers

import (
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stock_trading_backend/models"
	"stock_trading_backend/services/marketdata"
	"stock_trading_backend/services/updater"
)

// StockController handles tracked-symbol and market-data requests
type StockController struct {
	db           *gorm.DB
	cache        *marketdata.Cache
	updater      *updater.Scheduler
	responseBars int
}

// NewStockController creates a new stock controller
func NewStockController(db *gorm.DB, cache *marketdata.Cache, upd *updater.Scheduler, responseBars int) *StockController {
	return &StockController{
		db:           db,
		cache:        cache,
		updater:      upd,
		responseBars: responseBars,
	}
}

// GetStocks returns the tracked symbol list
// GET /api/stocks
func (sc *StockController) GetStocks(c *gin.Context) {
	var stocks []models.TrackedStock
	if err := sc.db.Order("symbol").Find(&stocks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stocks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stocks})
}

// AddStock starts tracking a symbol
// POST /api/stocks
func (sc *StockController) AddStock(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol" binding:"required"`
		Name   string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol is required"})
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol is required"})
		return
	}

	// reject symbols the data source does not know before tracking them
	if _, err := sc.cache.Get(c.Request.Context(), symbol); err != nil {
		if errors.Is(err, marketdata.ErrDataUnavailable) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No data available for " + symbol})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch data for " + symbol})
		return
	}

	stock := models.TrackedStock{Symbol: symbol, Name: req.Name}
	if err := sc.db.Create(&stock).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Symbol already tracked"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": stock})
}

// RemoveStock stops tracking a symbol
// DELETE /api/stocks/:symbol
func (sc *StockController) RemoveStock(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	result := sc.db.Where("symbol = ?", symbol).Delete(&models.TrackedStock{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove stock"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stock not tracked"})
		return
	}

	sc.cache.Invalidate(symbol)
	c.JSON(http.StatusOK, gin.H{"message": symbol + " removed"})
}

type barResponse struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// GetStockPrices returns the trailing daily bars plus the current price
// GET /api/stocks/:symbol/prices
func (sc *StockController) GetStockPrices(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	bars, err := sc.cache.Get(c.Request.Context(), symbol)
	if errors.Is(err, marketdata.ErrDataUnavailable) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No data available for " + symbol})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch prices"})
		return
	}
	if len(bars) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No data available for " + symbol})
		return
	}

	if len(bars) > sc.responseBars {
		bars = bars[len(bars)-sc.responseBars:]
	}

	data := make([]barResponse, len(bars))
	for i, b := range bars {
		data[i] = barResponse{
			Date:   b.Date.Format("2006-01-02"),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}

	resp := gin.H{
		"symbol":        symbol,
		"current_price": bars[len(bars)-1].Close,
		"data":          data,
	}
	if len(bars) > 1 {
		resp["previous_close"] = bars[len(bars)-2].Close
	}
	c.JSON(http.StatusOK, resp)
}

// GetStockSignal computes the indicators and signal on demand
// GET /api/stocks/:symbol/signal
func (sc *StockController) GetStockSignal(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	ev, err := sc.updater.Evaluate(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, marketdata.ErrDataUnavailable) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No data available for " + symbol})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to evaluate " + symbol})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       ev,
		"indicators": jsonSafe(ev.Indicators),
	})
}

// jsonSafe replaces NaN values with null so the payload marshals.
func jsonSafe(row map[string]float64) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for name, v := range row {
		if math.IsNaN(v) {
			out[name] = nil
		} else {
			out[name] = v
		}
	}
	return out
}
