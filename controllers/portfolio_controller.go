package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stock_trading_backend/models"
	"stock_trading_backend/services/events"
	"stock_trading_backend/services/ledger"
	"stock_trading_backend/services/marketdata"
)

// PortfolioController handles wallet, position and trade requests
type PortfolioController struct {
	ledger *ledger.Ledger
	cache  *marketdata.Cache
	sink   events.Sink
}

// NewPortfolioController creates a new portfolio controller
func NewPortfolioController(l *ledger.Ledger, cache *marketdata.Cache, sink events.Sink) *PortfolioController {
	return &PortfolioController{ledger: l, cache: cache, sink: sink}
}

// GetWallet returns the cash balance
// GET /api/wallet
func (pc *PortfolioController) GetWallet(c *gin.Context) {
	wallet, err := pc.ledger.Wallet()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch wallet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": wallet})
}

type amountRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// Deposit adds funds to the wallet
// POST /api/wallet/deposit
func (pc *PortfolioController) Deposit(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount is required"})
		return
	}

	amount := decimal.NewFromFloat(req.Amount)
	txn, err := pc.ledger.Deposit(amount, models.SourceManual, "Manual deposit")
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deposit"})
		return
	}

	pc.emitTransaction(txn)
	c.JSON(http.StatusOK, gin.H{"data": txn})
}

// Withdraw removes funds from the wallet
// POST /api/wallet/withdraw
func (pc *PortfolioController) Withdraw(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount is required"})
		return
	}

	amount := decimal.NewFromFloat(req.Amount)
	txn, err := pc.ledger.Withdraw(amount, models.SourceManual, "Manual withdrawal")
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive"})
		case errors.Is(err, ledger.ErrInsufficientFunds):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient funds"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to withdraw"})
		}
		return
	}

	pc.emitTransaction(txn)
	c.JSON(http.StatusOK, gin.H{"data": txn})
}

type positionView struct {
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	AvgBuyPrice   decimal.Decimal `json:"avg_buy_price"`
	CurrentPrice  float64         `json:"current_price,omitempty"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// GetPortfolio returns open positions grouped by symbol with unrealized
// profit and loss against the latest cached price
// GET /api/portfolio
func (pc *PortfolioController) GetPortfolio(c *gin.Context) {
	lots, err := pc.ledger.Positions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch positions"})
		return
	}

	bySymbol := make(map[string][]models.Position)
	order := make([]string, 0)
	for _, lot := range lots {
		if _, seen := bySymbol[lot.Symbol]; !seen {
			order = append(order, lot.Symbol)
		}
		bySymbol[lot.Symbol] = append(bySymbol[lot.Symbol], lot)
	}

	views := make([]positionView, 0, len(order))
	for _, symbol := range order {
		var quantity int64
		cost := decimal.Zero
		for _, lot := range bySymbol[symbol] {
			quantity += lot.Quantity
			cost = cost.Add(lot.BuyPrice.Mul(decimal.NewFromInt(lot.Quantity)))
		}

		view := positionView{
			Symbol:      symbol,
			Quantity:    quantity,
			AvgBuyPrice: cost.Div(decimal.NewFromInt(quantity)).Round(2),
		}
		if bars, ok := pc.cache.Peek(symbol); ok {
			price := bars[len(bars)-1].Close
			view.CurrentPrice = price
			marketValue := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(quantity))
			view.UnrealizedPnL = marketValue.Sub(cost).Round(2)
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{"data": views})
}

// Trade executes a manual buy or sell at the current market price
// POST /api/trade
func (pc *PortfolioController) Trade(c *gin.Context) {
	var req struct {
		Type     string `json:"type" binding:"required"`
		Symbol   string `json:"symbol" binding:"required"`
		Quantity int64  `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type, symbol and quantity are required"})
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	bars, err := pc.cache.Get(c.Request.Context(), symbol)
	if err != nil || len(bars) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No data available for " + symbol})
		return
	}
	price := decimal.NewFromFloat(bars[len(bars)-1].Close)

	var txn *models.Transaction
	switch req.Type {
	case models.TransactionBuy:
		txn, err = pc.ledger.Buy(symbol, req.Quantity, price, models.SourceManual, "Manual buy")
	case models.TransactionSell:
		txn, err = pc.ledger.Sell(symbol, req.Quantity, price, models.SourceManual, "manual", "Manual sell")
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be buy or sell"})
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity and price must be positive"})
		case errors.Is(err, ledger.ErrInsufficientFunds):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient funds"})
		case errors.Is(err, ledger.ErrInsufficientQuantity):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient quantity"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to execute trade"})
		}
		return
	}

	pc.emitTrade(txn)
	c.JSON(http.StatusOK, gin.H{"data": txn})
}

// GetTransactions returns the transaction history, newest first
// GET /api/transactions?source=bot|manual&limit=N
func (pc *PortfolioController) GetTransactions(c *gin.Context) {
	source := c.Query("source")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	txns, err := pc.ledger.Transactions(source, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": txns})
}

func (pc *PortfolioController) emitTransaction(txn *models.Transaction) {
	wallet, err := pc.ledger.Wallet()
	if err != nil {
		return
	}
	pc.sink.Publish(events.TypeTransactionExecuted, events.TransactionExecuted{
		Type:          txn.Type,
		Amount:        txn.Amount.Abs().String(),
		WalletBalance: wallet.Balance.String(),
		Timestamp:     txn.CreatedAt.Format(time.RFC3339),
		Description:   txn.Description,
	})
}

func (pc *PortfolioController) emitTrade(txn *models.Transaction) {
	wallet, err := pc.ledger.Wallet()
	if err != nil {
		return
	}
	pc.sink.Publish(events.TypeTradeExecuted, events.TradeExecuted{
		Type:          txn.Type,
		Symbol:        txn.Symbol,
		Quantity:      txn.Quantity,
		Price:         txn.Price.String(),
		Total:         txn.Amount.Abs().String(),
		WalletBalance: wallet.Balance.String(),
		Timestamp:     txn.CreatedAt.Format(time.RFC3339),
		Description:   txn.Description,
	})
}
