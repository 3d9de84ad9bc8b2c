package ledger

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stock_trading_backend/models"
)

// Ledger mutation errors, surfaced to the initiating caller. A rejected
// operation leaves no partial state behind.
var (
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
)

// Ledger is the authoritative record of wallet balance, open positions
// and the append-only transaction log. All mutations run one at a time
// under a single mutex, each inside a database transaction, so the
// balance always equals the initial balance plus the signed sum of all
// transaction amounts, even under concurrent callers.
type Ledger struct {
	db *gorm.DB
	mu sync.Mutex
}

// New creates a Ledger over the given database.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// EnsureWallet creates the singleton wallet row with the given starting
// balance if none exists yet.
func (l *Ledger) EnsureWallet(initialBalance decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var wallet models.Wallet
	err := l.db.First(&wallet).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	wallet = models.Wallet{Balance: initialBalance}
	if err := l.db.Create(&wallet).Error; err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	log.Printf("Wallet created with starting balance %s", initialBalance.StringFixed(2))
	return nil
}

// Wallet returns the current wallet state.
func (l *Ledger) Wallet() (models.Wallet, error) {
	var wallet models.Wallet
	err := l.db.First(&wallet).Error
	return wallet, err
}

// Deposit adds funds to the wallet and appends a deposit transaction.
func (l *Ledger) Deposit(amount decimal.Decimal, source, description string) (*models.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var txn *models.Transaction
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var wallet models.Wallet
		if err := tx.First(&wallet).Error; err != nil {
			return err
		}
		wallet.Balance = wallet.Balance.Add(amount)
		if err := tx.Save(&wallet).Error; err != nil {
			return err
		}
		txn = &models.Transaction{
			Type:        models.TransactionDeposit,
			Amount:      amount,
			Source:      source,
			Description: description,
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Withdraw removes funds from the wallet. It fails with
// ErrInsufficientFunds when the balance cannot cover the amount, and in
// that case records nothing.
func (l *Ledger) Withdraw(amount decimal.Decimal, source, description string) (*models.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var txn *models.Transaction
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var wallet models.Wallet
		if err := tx.First(&wallet).Error; err != nil {
			return err
		}
		if wallet.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}
		wallet.Balance = wallet.Balance.Sub(amount)
		if err := tx.Save(&wallet).Error; err != nil {
			return err
		}
		txn = &models.Transaction{
			Type:        models.TransactionWithdrawal,
			Amount:      amount.Neg(),
			Source:      source,
			Description: description,
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Buy opens a new position lot for the symbol, deducting the cost from
// the wallet. Fails with ErrInsufficientFunds when the cost exceeds the
// balance.
func (l *Ledger) Buy(symbol string, quantity int64, price decimal.Decimal, source, description string) (*models.Transaction, error) {
	if quantity <= 0 || price.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cost := price.Mul(decimal.NewFromInt(quantity))
	var txn *models.Transaction
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var wallet models.Wallet
		if err := tx.First(&wallet).Error; err != nil {
			return err
		}
		if wallet.Balance.LessThan(cost) {
			return ErrInsufficientFunds
		}
		wallet.Balance = wallet.Balance.Sub(cost)
		if err := tx.Save(&wallet).Error; err != nil {
			return err
		}
		position := models.Position{
			Symbol:   symbol,
			Quantity: quantity,
			BuyPrice: price,
			BuyDate:  time.Now(),
		}
		if err := tx.Create(&position).Error; err != nil {
			return err
		}
		txn = &models.Transaction{
			Type:        models.TransactionBuy,
			Amount:      cost.Neg(),
			Symbol:      symbol,
			Quantity:    quantity,
			Price:       price,
			Source:      source,
			Description: description,
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Sell closes or shrinks position lots for the symbol oldest-first and
// credits the proceeds. Fails with ErrInsufficientQuantity when the open
// quantity cannot cover the request.
func (l *Ledger) Sell(symbol string, quantity int64, price decimal.Decimal, source, reason, description string) (*models.Transaction, error) {
	if quantity <= 0 || price.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	proceeds := price.Mul(decimal.NewFromInt(quantity))
	var txn *models.Transaction
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var lots []models.Position
		if err := tx.Where("symbol = ?", symbol).Order("buy_date asc, id asc").Find(&lots).Error; err != nil {
			return err
		}
		var total int64
		for _, lot := range lots {
			total += lot.Quantity
		}
		if total < quantity {
			return ErrInsufficientQuantity
		}

		remaining := quantity
		for _, lot := range lots {
			if remaining <= 0 {
				break
			}
			if lot.Quantity <= remaining {
				remaining -= lot.Quantity
				if err := tx.Delete(&lot).Error; err != nil {
					return err
				}
			} else {
				lot.Quantity -= remaining
				remaining = 0
				if err := tx.Save(&lot).Error; err != nil {
					return err
				}
			}
		}

		var wallet models.Wallet
		if err := tx.First(&wallet).Error; err != nil {
			return err
		}
		wallet.Balance = wallet.Balance.Add(proceeds)
		if err := tx.Save(&wallet).Error; err != nil {
			return err
		}

		txn = &models.Transaction{
			Type:        models.TransactionSell,
			Amount:      proceeds,
			Symbol:      symbol,
			Quantity:    quantity,
			Price:       price,
			Source:      source,
			SellReason:  reason,
			Description: description,
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Positions returns all open position lots.
func (l *Ledger) Positions() ([]models.Position, error) {
	var positions []models.Position
	err := l.db.Order("symbol asc, buy_date asc").Find(&positions).Error
	return positions, err
}

// PositionsFor returns the open lots for one symbol, oldest first.
func (l *Ledger) PositionsFor(symbol string) ([]models.Position, error) {
	var positions []models.Position
	err := l.db.Where("symbol = ?", symbol).Order("buy_date asc, id asc").Find(&positions).Error
	return positions, err
}

// OpenQuantity returns the total open quantity for a symbol.
func (l *Ledger) OpenQuantity(symbol string) (int64, error) {
	lots, err := l.PositionsFor(symbol)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, lot := range lots {
		total += lot.Quantity
	}
	return total, nil
}

// OpenSymbolCount returns how many distinct symbols have open positions.
func (l *Ledger) OpenSymbolCount() (int64, error) {
	var count int64
	err := l.db.Model(&models.Position{}).Distinct("symbol").Count(&count).Error
	return count, err
}

// AvgBuyPrice returns the quantity-weighted average purchase price of a
// symbol's open lots. The second return value is false when the symbol
// has no open position.
func (l *Ledger) AvgBuyPrice(symbol string) (decimal.Decimal, bool, error) {
	lots, err := l.PositionsFor(symbol)
	if err != nil {
		return decimal.Zero, false, err
	}
	var quantity int64
	cost := decimal.Zero
	for _, lot := range lots {
		quantity += lot.Quantity
		cost = cost.Add(lot.BuyPrice.Mul(decimal.NewFromInt(lot.Quantity)))
	}
	if quantity == 0 {
		return decimal.Zero, false, nil
	}
	return cost.Div(decimal.NewFromInt(quantity)), true, nil
}

// Transactions returns the transaction history, newest first. An empty
// source returns every transaction.
func (l *Ledger) Transactions(source string, limit int) ([]models.Transaction, error) {
	query := l.db.Order("created_at desc, id desc")
	if source != "" {
		query = query.Where("source = ?", source)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var txns []models.Transaction
	err := query.Find(&txns).Error
	return txns, err
}

// BotTradesToday counts bot-tagged buy and sell transactions recorded
// today, for the daily trade cap.
func (l *Ledger) BotTradesToday() (int64, error) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var count int64
	err := l.db.Model(&models.Transaction{}).
		Where("source = ? AND type IN ? AND created_at >= ?",
			models.SourceBot, []string{models.TransactionBuy, models.TransactionSell}, dayStart).
		Count(&count).Error
	return count, err
}

// ResetBotPerformance deletes bot-tagged transactions only. Manual
// history and the wallet balance are untouched.
func (l *Ledger) ResetBotPerformance() (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := l.db.Where("source = ?", models.SourceBot).Delete(&models.Transaction{})
	if result.Error != nil {
		return 0, result.Error
	}
	log.Printf("Bot performance reset: %d transactions removed", result.RowsAffected)
	return result.RowsAffected, nil
}
