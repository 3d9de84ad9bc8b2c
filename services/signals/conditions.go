package signals

import (
	"errors"
	"log"
	"math"

	"stock_trading_backend/models"
	"stock_trading_backend/services/indicators"
)

// conditionLookback is the window of daily returns used for the
// volatility classification.
const conditionLookback = 60

var errConditionsUnavailable = errors.New("market conditions unavailable")

// ClassifyConditions derives the market state for the latest bar.
// It fails only when the core inputs are missing.
func ClassifyConditions(set *indicators.Set) (models.MarketCondition, error) {
	n := set.Len()
	if n < 2 {
		return models.MarketCondition{}, errConditionsUnavailable
	}
	bars := set.Bars()
	close := bars[n-1].Close

	cond := models.MarketCondition{
		Trend:      models.TrendNeutral,
		Volatility: models.VolatilityLow,
		Momentum:   models.MomentumNeutral,
		PriceLevel: models.PriceWithinRange,
		Volume:     models.VolumeNormal,
	}

	sma5, sma20, sma50 := set.Latest(indicators.SMA5), set.Latest(indicators.SMA20), set.Latest(indicators.SMA50)
	rsi := set.Latest(indicators.RSI)
	if !indicators.Defined(sma5) || !indicators.Defined(sma20) || !indicators.Defined(sma50) || !indicators.Defined(rsi) {
		return models.MarketCondition{}, errConditionsUnavailable
	}

	if sma5 > sma20 && sma20 > sma50 {
		cond.Trend = models.TrendStrongUp
	} else if sma5 < sma20 && sma20 < sma50 {
		cond.Trend = models.TrendStrongDown
	}

	// Volatility: stdev of daily returns (in percent) over the lookback
	start := n - conditionLookback
	if start < 1 {
		start = 1
	}
	var returns []float64
	for i := start; i < n; i++ {
		if prev := bars[i-1].Close; prev != 0 {
			returns = append(returns, (bars[i].Close/prev-1)*100)
		}
	}
	if stdev(returns) > 3 {
		cond.Volatility = models.VolatilityHigh
	}

	if rsi > 70 {
		cond.Momentum = models.MomentumOverbought
	} else if rsi < 30 {
		cond.Momentum = models.MomentumOversold
	}

	upper, lower := set.Latest(indicators.BBUpper), set.Latest(indicators.BBLower)
	if indicators.Defined(upper) && indicators.Defined(lower) {
		if close > upper {
			cond.PriceLevel = models.PriceAboveResistance
		} else if close < lower {
			cond.PriceLevel = models.PriceBelowSupport
		}
	}

	if ratio := set.Latest(indicators.VolumeRatio); indicators.Defined(ratio) {
		if ratio > 1.5 {
			cond.Volume = models.VolumeHigh
		} else if ratio < 0.5 {
			cond.Volume = models.VolumeLow
		}
	}

	return cond, nil
}

// FilterSignal applies the market-condition vetoes to a fused signal.
// A veto only ever downgrades Buy or Sell to Hold. When conditions
// cannot be computed the signal passes through unchanged (fail-open on
// the filter, not on the trade).
func FilterSignal(symbol string, signal models.Signal, set *indicators.Set) (models.Signal, models.MarketCondition) {
	cond, err := ClassifyConditions(set)
	if err != nil {
		log.Printf("Market conditions unavailable for %s, signal passes unfiltered", symbol)
		return signal, models.MarketCondition{}
	}
	if signal == models.SignalHold {
		return signal, cond
	}

	if signal == models.SignalSell {
		if cond.Trend == models.TrendStrongUp && cond.Volatility == models.VolatilityLow && cond.Momentum != models.MomentumOverbought {
			log.Printf("Sell vetoed for %s: strong uptrend with low volatility", symbol)
			return models.SignalHold, cond
		}
		if cond.PriceLevel == models.PriceBelowSupport && cond.Trend != models.TrendStrongDown {
			log.Printf("Sell vetoed for %s: price below support without a downtrend", symbol)
			return models.SignalHold, cond
		}
	}

	if signal == models.SignalBuy {
		if cond.Trend == models.TrendStrongDown && cond.Volatility == models.VolatilityHigh && cond.Momentum != models.MomentumOversold {
			log.Printf("Buy vetoed for %s: strong downtrend with high volatility", symbol)
			return models.SignalHold, cond
		}
		if cond.PriceLevel == models.PriceAboveResistance && cond.Trend != models.TrendStrongUp {
			log.Printf("Buy vetoed for %s: extended above resistance", symbol)
			return models.SignalHold, cond
		}
		if cond.Volume == models.VolumeLow && cond.PriceLevel != models.PriceBelowSupport {
			log.Printf("Buy vetoed for %s: volume too thin", symbol)
			return models.SignalHold, cond
		}
	}

	return signal, cond
}

func stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)-1))
}
