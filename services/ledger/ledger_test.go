package ledger

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stock_trading_backend/models"
)

func newTestLedger(t *testing.T, initial float64) *Ledger {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "ledger.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.MigratePortfolioModels(db))

	l := New(db)
	require.NoError(t, l.EnsureWallet(decimal.NewFromFloat(initial)))
	return l
}

func balance(t *testing.T, l *Ledger) decimal.Decimal {
	t.Helper()
	wallet, err := l.Wallet()
	require.NoError(t, err)
	return wallet.Balance
}

func TestEnsureWalletIsIdempotent(t *testing.T) {
	l := newTestLedger(t, 10000)
	require.NoError(t, l.EnsureWallet(decimal.NewFromInt(99999)))

	assert.True(t, balance(t, l).Equal(decimal.NewFromInt(10000)))
}

func TestDepositAndWithdraw(t *testing.T) {
	l := newTestLedger(t, 1000)

	txn, err := l.Deposit(decimal.NewFromInt(500), models.SourceManual, "top up")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionDeposit, txn.Type)
	assert.True(t, txn.Amount.Equal(decimal.NewFromInt(500)))
	assert.True(t, balance(t, l).Equal(decimal.NewFromInt(1500)))

	txn, err = l.Withdraw(decimal.NewFromInt(300), models.SourceManual, "take out")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionWithdrawal, txn.Type)
	assert.True(t, txn.Amount.Equal(decimal.NewFromInt(-300)), "withdrawals record negative amounts")
	assert.True(t, balance(t, l).Equal(decimal.NewFromInt(1200)))
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	l := newTestLedger(t, 500)

	_, err := l.Withdraw(decimal.NewFromInt(2000), models.SourceManual, "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// the failed attempt leaves no trace
	assert.True(t, balance(t, l).Equal(decimal.NewFromInt(500)))
	txns, err := l.Transactions("", 0)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestInvalidAmounts(t *testing.T) {
	l := newTestLedger(t, 1000)

	_, err := l.Deposit(decimal.NewFromInt(-5), models.SourceManual, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = l.Withdraw(decimal.Zero, models.SourceManual, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = l.Buy("AAA", 0, decimal.NewFromInt(10), models.SourceManual, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = l.Sell("AAA", 5, decimal.Zero, models.SourceManual, "", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestBuySellRoundTrip(t *testing.T) {
	l := newTestLedger(t, 10000)

	_, err := l.Buy("AAA", 10, decimal.NewFromInt(100), models.SourceManual, "")
	require.NoError(t, err)
	assert.True(t, balance(t, l).Equal(decimal.NewFromInt(9000)))

	qty, err := l.OpenQuantity("AAA")
	require.NoError(t, err)
	assert.EqualValues(t, 10, qty)

	_, err = l.Sell("AAA", 10, decimal.NewFromInt(110), models.SourceManual, "", "")
	require.NoError(t, err)
	assert.True(t, balance(t, l).Equal(decimal.NewFromInt(10100)))

	qty, err = l.OpenQuantity("AAA")
	require.NoError(t, err)
	assert.Zero(t, qty)
}

func TestSellBuyRoundTripRestoresPosition(t *testing.T) {
	l := newTestLedger(t, 10000)

	_, err := l.Buy("AAA", 10, decimal.NewFromInt(100), models.SourceManual, "")
	require.NoError(t, err)
	seededBalance := balance(t, l)

	// Selling and re-buying the same quantity at the same price puts
	// both the position and the balance back where they started.
	_, err = l.Sell("AAA", 10, decimal.NewFromInt(100), models.SourceManual, "", "")
	require.NoError(t, err)
	_, err = l.Buy("AAA", 10, decimal.NewFromInt(100), models.SourceManual, "")
	require.NoError(t, err)

	qty, err := l.OpenQuantity("AAA")
	require.NoError(t, err)
	assert.EqualValues(t, 10, qty)
	assert.True(t, balance(t, l).Equal(seededBalance))
}

func TestBuyInsufficientFunds(t *testing.T) {
	l := newTestLedger(t, 100)

	_, err := l.Buy("AAA", 10, decimal.NewFromInt(100), models.SourceManual, "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, balance(t, l).Equal(decimal.NewFromInt(100)))
}

func TestSellMoreThanOwned(t *testing.T) {
	l := newTestLedger(t, 10000)

	_, err := l.Buy("AAA", 5, decimal.NewFromInt(100), models.SourceManual, "")
	require.NoError(t, err)

	_, err = l.Sell("AAA", 8, decimal.NewFromInt(100), models.SourceManual, "", "")
	assert.ErrorIs(t, err, ErrInsufficientQuantity)

	// position and balance untouched by the rejected sell
	qty, err := l.OpenQuantity("AAA")
	require.NoError(t, err)
	assert.EqualValues(t, 5, qty)
	assert.True(t, balance(t, l).Equal(decimal.NewFromInt(9500)))
}

func TestSellConsumesLotsOldestFirst(t *testing.T) {
	l := newTestLedger(t, 10000)

	_, err := l.Buy("AAA", 5, decimal.NewFromInt(100), models.SourceManual, "")
	require.NoError(t, err)
	_, err = l.Buy("AAA", 5, decimal.NewFromInt(120), models.SourceManual, "")
	require.NoError(t, err)

	_, err = l.Sell("AAA", 7, decimal.NewFromInt(130), models.SourceManual, "", "")
	require.NoError(t, err)

	lots, err := l.PositionsFor("AAA")
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.EqualValues(t, 3, lots[0].Quantity)
	assert.True(t, lots[0].BuyPrice.Equal(decimal.NewFromInt(120)), "the newer lot survives")
}

func TestAvgBuyPriceIsQuantityWeighted(t *testing.T) {
	l := newTestLedger(t, 10000)

	_, err := l.Buy("AAA", 3, decimal.NewFromInt(100), models.SourceManual, "")
	require.NoError(t, err)
	_, err = l.Buy("AAA", 1, decimal.NewFromInt(140), models.SourceManual, "")
	require.NoError(t, err)

	avg, ok, err := l.AvgBuyPrice("AAA")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, avg.Equal(decimal.NewFromInt(110)))

	_, ok, err = l.AvgBuyPrice("ZZZ")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBalanceEqualsInitialPlusSignedSum(t *testing.T) {
	l := newTestLedger(t, 1000)

	_, err := l.Deposit(decimal.NewFromInt(4000), models.SourceManual, "")
	require.NoError(t, err)
	_, err = l.Buy("AAA", 10, decimal.NewFromInt(250), models.SourceBot, "")
	require.NoError(t, err)
	_, err = l.Sell("AAA", 4, decimal.NewFromInt(300), models.SourceBot, "", "")
	require.NoError(t, err)
	_, err = l.Withdraw(decimal.NewFromInt(700), models.SourceManual, "")
	require.NoError(t, err)

	txns, err := l.Transactions("", 0)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, txn := range txns {
		sum = sum.Add(txn.Amount)
	}
	assert.True(t, balance(t, l).Equal(decimal.NewFromInt(1000).Add(sum)))
}

func TestTransactionsFilterBySource(t *testing.T) {
	l := newTestLedger(t, 10000)

	_, err := l.Deposit(decimal.NewFromInt(100), models.SourceManual, "")
	require.NoError(t, err)
	_, err = l.Buy("AAA", 1, decimal.NewFromInt(50), models.SourceBot, "")
	require.NoError(t, err)

	botTxns, err := l.Transactions(models.SourceBot, 0)
	require.NoError(t, err)
	require.Len(t, botTxns, 1)
	assert.Equal(t, models.TransactionBuy, botTxns[0].Type)

	all, err := l.Transactions("", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestResetBotPerformanceKeepsManualHistory(t *testing.T) {
	l := newTestLedger(t, 10000)

	_, err := l.Deposit(decimal.NewFromInt(100), models.SourceManual, "")
	require.NoError(t, err)
	_, err = l.Buy("AAA", 2, decimal.NewFromInt(50), models.SourceBot, "")
	require.NoError(t, err)
	_, err = l.Sell("AAA", 2, decimal.NewFromInt(60), models.SourceBot, "", "")
	require.NoError(t, err)
	before := balance(t, l)

	deleted, err := l.ResetBotPerformance()
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	txns, err := l.Transactions("", 0)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, models.SourceManual, txns[0].Source)

	// the reset rewrites history, not the balance
	assert.True(t, balance(t, l).Equal(before))
}

func TestBotTradesTodayCountsOnlyBotTrades(t *testing.T) {
	l := newTestLedger(t, 10000)

	_, err := l.Buy("AAA", 1, decimal.NewFromInt(50), models.SourceBot, "")
	require.NoError(t, err)
	_, err = l.Buy("BBB", 1, decimal.NewFromInt(50), models.SourceManual, "")
	require.NoError(t, err)
	_, err = l.Deposit(decimal.NewFromInt(10), models.SourceBot, "")
	require.NoError(t, err)

	count, err := l.BotTradesToday()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
