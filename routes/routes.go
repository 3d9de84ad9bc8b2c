package routes

import (
	"github.com/gin-gonic/gin"

	"stock_trading_backend/controllers"
	"stock_trading_backend/services/events"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, stocks *controllers.StockController, portfolio *controllers.PortfolioController, bot *controllers.BotController, hub *events.Hub) {
	api := router.Group("/api")
	{
		// Tracked stocks and market data
		stockRoutes := api.Group("/stocks")
		{
			stockRoutes.GET("", stocks.GetStocks)
			stockRoutes.POST("", stocks.AddStock)
			stockRoutes.DELETE("/:symbol", stocks.RemoveStock)
			stockRoutes.GET("/:symbol/prices", stocks.GetStockPrices)
			stockRoutes.GET("/:symbol/signal", stocks.GetStockSignal)
		}

		// Wallet and trading
		api.GET("/wallet", portfolio.GetWallet)
		api.POST("/wallet/deposit", portfolio.Deposit)
		api.POST("/wallet/withdraw", portfolio.Withdraw)
		api.GET("/portfolio", portfolio.GetPortfolio)
		api.POST("/trade", portfolio.Trade)
		api.GET("/transactions", portfolio.GetTransactions)

		// Trading bot
		botRoutes := api.Group("/bot")
		{
			botRoutes.GET("/config", bot.GetConfig)
			botRoutes.PUT("/config", bot.UpdateConfig)
			botRoutes.POST("/reset", bot.Reset)
			botRoutes.GET("/status", bot.GetStatus)
		}
	}

	// Websocket event stream
	router.GET("/ws", func(c *gin.Context) {
		hub.HandleWebSocket(c.Writer, c.Request)
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Stock trading backend is running",
		})
	})
}
