package trading

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stock_trading_backend/models"
	"stock_trading_backend/services/events"
	"stock_trading_backend/services/ledger"
)

// Sell reasons recorded on bot-initiated sells, in evaluation priority
// order.
const (
	ReasonSellSignal   = "sell signal"
	ReasonProfitTarget = "profit target"
	ReasonStopLoss     = "stop loss"
)

// Bot is the automated trading controller. It applies the configured
// risk limits to each incoming signal and instructs the ledger when a
// trade should happen. Risk-limit rejections are silent no-ops,
// observable through logs only.
type Bot struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	sink   events.Sink
}

// NewBot creates a bot controller over the given ledger and event sink.
func NewBot(db *gorm.DB, lgr *ledger.Ledger, sink events.Sink) *Bot {
	return &Bot{db: db, ledger: lgr, sink: sink}
}

// EnsureConfig creates the singleton bot configuration row with defaults
// if none exists yet.
func (b *Bot) EnsureConfig() error {
	var cfg models.BotConfig
	err := b.db.First(&cfg).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	cfg = models.DefaultBotConfig()
	if err := b.db.Create(&cfg).Error; err != nil {
		return fmt.Errorf("failed to create bot config: %w", err)
	}
	log.Println("Bot config created with defaults (inactive)")
	return nil
}

// Config returns the current bot configuration.
func (b *Bot) Config() (models.BotConfig, error) {
	var cfg models.BotConfig
	err := b.db.First(&cfg).Error
	return cfg, err
}

// UpdateConfig applies a configuration update to the singleton row.
func (b *Bot) UpdateConfig(update models.BotConfig) (models.BotConfig, error) {
	var cfg models.BotConfig
	if err := b.db.First(&cfg).Error; err != nil {
		return cfg, err
	}
	cfg.IsActive = update.IsActive
	cfg.MaxInvestmentPerTrade = update.MaxInvestmentPerTrade
	cfg.ProfitTargetPct = update.ProfitTargetPct
	cfg.StopLossPct = update.StopLossPct
	cfg.MaxTradesPerDay = update.MaxTradesPerDay
	cfg.MaxOpenPositions = update.MaxOpenPositions
	cfg.LastUpdated = time.Now()
	if err := b.db.Save(&cfg).Error; err != nil {
		return cfg, err
	}
	log.Printf("Bot config updated: active=%v maxInvestment=%s trades/day=%d",
		cfg.IsActive, cfg.MaxInvestmentPerTrade.StringFixed(2), cfg.MaxTradesPerDay)
	return cfg, nil
}

// OnSignal runs the trading decision for one symbol. The signal has
// already been fused and filtered; price is the symbol's latest close.
func (b *Bot) OnSignal(symbol string, signal models.Signal, price float64) {
	cfg, err := b.Config()
	if err != nil {
		log.Printf("Bot config unavailable: %v", err)
		return
	}
	if !cfg.IsActive {
		return
	}

	tradesToday, err := b.ledger.BotTradesToday()
	if err != nil {
		log.Printf("Failed to count today's bot trades: %v", err)
		return
	}
	if tradesToday >= int64(cfg.MaxTradesPerDay) {
		log.Printf("Daily trade limit reached (%d), skipping %s", cfg.MaxTradesPerDay, symbol)
		return
	}

	decPrice := decimal.NewFromFloat(price)
	openQty, err := b.ledger.OpenQuantity(symbol)
	if err != nil {
		log.Printf("Failed to load position for %s: %v", symbol, err)
		return
	}

	if openQty > 0 {
		b.maybeSell(symbol, signal, decPrice, openQty, cfg)
		return
	}
	if signal == models.SignalBuy {
		b.maybeBuy(symbol, decPrice, cfg)
	}
}

// maybeBuy opens a position when the position cap and wallet allow it.
func (b *Bot) maybeBuy(symbol string, price decimal.Decimal, cfg models.BotConfig) {
	openSymbols, err := b.ledger.OpenSymbolCount()
	if err != nil {
		log.Printf("Failed to count open positions: %v", err)
		return
	}
	if openSymbols >= int64(cfg.MaxOpenPositions) {
		log.Printf("Open position limit reached (%d), skipping buy of %s", cfg.MaxOpenPositions, symbol)
		return
	}

	wallet, err := b.ledger.Wallet()
	if err != nil {
		log.Printf("Wallet unavailable: %v", err)
		return
	}

	budget := cfg.MaxInvestmentPerTrade
	if wallet.Balance.LessThan(budget) {
		budget = wallet.Balance
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return
	}
	quantity := budget.Div(price).IntPart()
	if quantity <= 0 {
		log.Printf("Skipping buy of %s: price %s exceeds available funds", symbol, price.StringFixed(2))
		return
	}

	description := fmt.Sprintf("Bot buy: %d %s @ %s", quantity, symbol, price.StringFixed(2))
	txn, err := b.ledger.Buy(symbol, quantity, price, models.SourceBot, description)
	if err != nil {
		log.Printf("Bot buy of %s rejected: %v", symbol, err)
		return
	}
	log.Printf("Bot bought %d %s at %s", quantity, symbol, price.StringFixed(2))
	b.emitTrade(txn)
}

// maybeSell closes the full open position when the signal or an exit
// rule says so. should-sell checks run in priority order so the recorded
// reason reflects the strongest trigger.
func (b *Bot) maybeSell(symbol string, signal models.Signal, price decimal.Decimal, openQty int64, cfg models.BotConfig) {
	avgPrice, ok, err := b.ledger.AvgBuyPrice(symbol)
	if err != nil || !ok {
		if err != nil {
			log.Printf("Failed to load cost basis for %s: %v", symbol, err)
		}
		return
	}

	hundred := decimal.NewFromInt(100)
	target := avgPrice.Mul(decimal.NewFromInt(1).Add(cfg.ProfitTargetPct.Div(hundred)))
	stop := avgPrice.Mul(decimal.NewFromInt(1).Sub(cfg.StopLossPct.Div(hundred)))

	var reason string
	switch {
	case signal == models.SignalSell:
		reason = ReasonSellSignal
	case price.GreaterThanOrEqual(target):
		reason = ReasonProfitTarget
	case price.LessThanOrEqual(stop):
		reason = ReasonStopLoss
	default:
		return
	}

	description := fmt.Sprintf("Bot sell (%s): %d %s @ %s", reason, openQty, symbol, price.StringFixed(2))
	txn, err := b.ledger.Sell(symbol, openQty, price, models.SourceBot, reason, description)
	if err != nil {
		log.Printf("Bot sell of %s rejected: %v", symbol, err)
		return
	}
	log.Printf("Bot sold %d %s at %s (%s)", openQty, symbol, price.StringFixed(2), reason)
	b.emitTrade(txn)
}

// emitTrade publishes a trade_executed event for a completed ledger
// transaction.
func (b *Bot) emitTrade(txn *models.Transaction) {
	wallet, err := b.ledger.Wallet()
	if err != nil {
		log.Printf("Wallet unavailable for trade event: %v", err)
		return
	}
	b.sink.Publish(events.TypeTradeExecuted, events.TradeExecuted{
		Type:          txn.Type,
		Symbol:        txn.Symbol,
		Quantity:      txn.Quantity,
		Price:         txn.Price.StringFixed(2),
		Total:         txn.Amount.Abs().StringFixed(2),
		WalletBalance: wallet.Balance.StringFixed(2),
		Timestamp:     txn.CreatedAt.Format(time.RFC3339),
		Description:   txn.Description,
	})
}
