package events

import (
	"log"
	"time"
)

// Event types broadcast to listeners.
const (
	TypePriceUpdate         = "price_update"
	TypeStockUpdate         = "stock_update"
	TypeTradeExecuted       = "trade_executed"
	TypeTransactionExecuted = "transaction_executed"
)

// Message is the envelope every listener receives.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

// PriceUpdate reports the latest price for a symbol.
type PriceUpdate struct {
	Symbol       string  `json:"symbol"`
	CurrentPrice float64 `json:"current_price"`
}

// StockUpdate reports the per-cycle evaluation result for a symbol.
type StockUpdate struct {
	Symbol           string  `json:"symbol"`
	CurrentPrice     float64 `json:"current_price"`
	PreviousDayPrice float64 `json:"previous_day_price"`
	Signal           string  `json:"signal"`
}

// TradeExecuted reports a completed buy or sell.
type TradeExecuted struct {
	Type          string  `json:"type"`
	Symbol        string  `json:"symbol"`
	Quantity      int64   `json:"quantity"`
	Price         string  `json:"price"`
	Total         string  `json:"total"`
	WalletBalance string  `json:"wallet_balance"`
	Timestamp     string  `json:"timestamp"`
	Description   string  `json:"description"`
}

// TransactionExecuted reports a completed deposit or withdrawal.
type TransactionExecuted struct {
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	WalletBalance string `json:"wallet_balance"`
	Timestamp     string `json:"timestamp"`
	Description   string `json:"description"`
}

// Sink accepts typed events for delivery to external listeners.
// Publishing never blocks the caller.
type Sink interface {
	Publish(eventType string, data interface{})
}

// NewMessage wraps a payload in the broadcast envelope.
func NewMessage(eventType string, data interface{}) Message {
	return Message{Type: eventType, Data: data, Time: time.Now().Format(time.RFC3339)}
}

// LogSink writes events to the process log. Used when no websocket hub
// is running, and by tests.
type LogSink struct{}

// Publish logs the event.
func (LogSink) Publish(eventType string, data interface{}) {
	log.Printf("event %s: %+v", eventType, data)
}
