package marketdata

import (
	"context"
	"errors"

	"stock_trading_backend/models"
)

// ErrDataUnavailable is returned when the provider has no bars for a
// symbol. It surfaces to API callers as a not-found.
var ErrDataUnavailable = errors.New("no price data available for symbol")

// Provider returns daily price history for a symbol. Implementations
// must bound their network calls; the context carries the per-attempt
// timeout.
type Provider interface {
	// FetchDailyBars returns up to `days` of trailing daily bars in
	// date-ascending order, unique by date.
	FetchDailyBars(ctx context.Context, symbol string, days int) ([]models.Bar, error)
}
