package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction types
const (
	TransactionDeposit    = "deposit"
	TransactionWithdrawal = "withdrawal"
	TransactionBuy        = "buy"
	TransactionSell       = "sell"
)

// Transaction sources
const (
	SourceManual = "manual"
	SourceBot    = "bot"
)

// Wallet holds the cash balance. A single row exists; the balance is
// never negative.
type Wallet struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,2)" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Position is one purchased lot of a symbol. A symbol may have several
// open lots; sells consume lots oldest-first.
type Position struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Symbol    string          `gorm:"index" json:"symbol"`
	Quantity  int64           `json:"quantity"`
	BuyPrice  decimal.Decimal `gorm:"type:decimal(15,2)" json:"buy_price"`
	BuyDate   time.Time       `json:"buy_date"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transaction is an append-only record of every wallet mutation.
// Deposits and sell proceeds carry positive amounts, withdrawals and
// buy costs negative ones, so the wallet balance always equals the
// initial balance plus the signed sum of all amounts.
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Type        string          `gorm:"index" json:"type"` // deposit, withdrawal, buy, sell
	Amount      decimal.Decimal `gorm:"type:decimal(20,2)" json:"amount"`
	Symbol      string          `json:"symbol,omitempty"`
	Quantity    int64           `json:"quantity,omitempty"`
	Price       decimal.Decimal `gorm:"type:decimal(15,2)" json:"price"`
	Source      string          `gorm:"index" json:"source"` // manual, bot
	SellReason  string          `json:"sell_reason,omitempty"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
}

// BotConfig is the automated-trading configuration. A single row exists,
// mutated only by explicit configuration updates.
type BotConfig struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	IsActive              bool            `json:"is_active"`
	MaxInvestmentPerTrade decimal.Decimal `gorm:"type:decimal(20,2)" json:"max_investment_per_trade"`
	ProfitTargetPct       decimal.Decimal `gorm:"type:decimal(10,4)" json:"profit_target_pct"`
	StopLossPct           decimal.Decimal `gorm:"type:decimal(10,4)" json:"stop_loss_pct"`
	MaxTradesPerDay       int             `json:"max_trades_per_day"`
	MaxOpenPositions      int             `json:"max_open_positions"`
	LastUpdated           time.Time       `json:"last_updated"`
}

// DefaultBotConfig returns the configuration seeded on first startup.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		IsActive:              false,
		MaxInvestmentPerTrade: decimal.NewFromInt(5000),
		ProfitTargetPct:       decimal.NewFromInt(5),
		StopLossPct:           decimal.NewFromInt(3),
		MaxTradesPerDay:       5,
		MaxOpenPositions:      3,
		LastUpdated:           time.Now(),
	}
}

// MigratePortfolioModels runs database migrations for portfolio-related models
func MigratePortfolioModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Wallet{},
		&Position{},
		&Transaction{},
		&BotConfig{},
	)
}
