package models

// Signal is the ternary trading recommendation.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Market condition classifications used by the signal filter.
const (
	TrendStrongUp   = "strong_up"
	TrendStrongDown = "strong_down"
	TrendNeutral    = "neutral"

	VolatilityHigh = "high"
	VolatilityLow  = "low"

	MomentumOverbought = "overbought"
	MomentumOversold   = "oversold"
	MomentumNeutral    = "neutral"

	PriceAboveResistance = "above_resistance"
	PriceBelowSupport    = "below_support"
	PriceWithinRange     = "within_range"

	VolumeHigh   = "high"
	VolumeLow    = "low"
	VolumeNormal = "normal"
)

// MarketCondition summarizes the market state for one symbol.
type MarketCondition struct {
	Trend      string `json:"trend"`
	Volatility string `json:"volatility"`
	Momentum   string `json:"momentum"`
	PriceLevel string `json:"price_level"`
	Volume     string `json:"volume"`
}
