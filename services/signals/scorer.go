package signals

import (
	"stock_trading_backend/models"
	"stock_trading_backend/services/indicators"
)

// MinBars is the history required before the rule scorer produces a
// non-Hold opinion.
const MinBars = 50

// signalThreshold is the score margin required to leave Hold.
const signalThreshold = 3

// Score holds the rule scorer's output. BuyScore and SellScore are the
// two non-negative counters accumulated across the scoring categories.
type Score struct {
	Signal    models.Signal `json:"signal"`
	BuyScore  float64       `json:"buy_score"`
	SellScore float64       `json:"sell_score"`
	Reasons   []string      `json:"reasons,omitempty"`
}

// Confidence is the margin between the two counters.
func (s Score) Confidence() float64 {
	d := s.BuyScore - s.SellScore
	if d < 0 {
		return -d
	}
	return d
}

// scoreContext is the per-evaluation view each category reads from.
type scoreContext struct {
	set       *indicators.Set
	last      int
	prev      int
	close     float64
	prevClose float64
}

func (c *scoreContext) at(name string, i int) float64 { return c.set.At(name, i) }
func (c *scoreContext) cur(name string) float64       { return c.set.At(name, c.last) }
func (c *scoreContext) before(name string) float64    { return c.set.At(name, c.prev) }
func defined(vs ...float64) bool {
	for _, v := range vs {
		if !indicators.Defined(v) {
			return false
		}
	}
	return true
}

// contribution is one category's vote. Categories are pure functions:
// when their inputs are undefined they report applicable=false and the
// remaining categories still contribute.
type contribution struct {
	buy        float64
	sell       float64
	applicable bool
	reasons    []string
}

func (c *contribution) explain(reason string) {
	c.reasons = append(c.reasons, reason)
}

type categoryFunc func(*scoreContext) contribution

type category struct {
	name string
	eval categoryFunc
}

var categories = []category{
	{"ma_crossovers", scoreMACrossovers},
	{"rsi", scoreRSI},
	{"macd", scoreMACD},
	{"bollinger", scoreBollinger},
	{"stochastic", scoreStochastic},
	{"volume", scoreVolume},
	{"momentum", scoreMomentum},
	{"support_resistance", scoreSupportResistance},
	{"adx_trend", scoreADXTrend},
}

// RuleScorer turns an indicator set into a ternary signal by summing
// weighted heuristic categories over the latest and prior bar.
type RuleScorer struct{}

// Evaluate scores the latest bar of the indicator set. With fewer than
// MinBars bars of history it returns Hold directly.
func (RuleScorer) Evaluate(set *indicators.Set) Score {
	n := set.Len()
	if n < MinBars {
		return Score{Signal: models.SignalHold}
	}

	bars := set.Bars()
	ctx := &scoreContext{
		set:       set,
		last:      n - 1,
		prev:      n - 2,
		close:     bars[n-1].Close,
		prevClose: bars[n-2].Close,
	}

	score := Score{Signal: models.SignalHold}
	for _, cat := range categories {
		c := cat.eval(ctx)
		if !c.applicable {
			continue
		}
		score.BuyScore += c.buy
		score.SellScore += c.sell
		score.Reasons = append(score.Reasons, c.reasons...)
	}

	// Volatility damper: high volatility reduces conviction on both
	// sides but never flips direction.
	if vol := ctx.cur(indicators.Volatility); indicators.Defined(vol) && vol > 0.4 {
		if score.BuyScore > 0 {
			score.BuyScore--
		}
		if score.SellScore > 0 {
			score.SellScore--
		}
	}

	switch {
	case score.BuyScore-score.SellScore >= signalThreshold:
		score.Signal = models.SignalBuy
	case score.SellScore-score.BuyScore >= signalThreshold:
		score.Signal = models.SignalSell
	}
	return score
}

// crossedAbove reports whether series a moved from at-or-below series b
// to above it between the prior and latest bar.
func crossedAbove(c *scoreContext, a, b string) (bool, bool) {
	curA, curB := c.cur(a), c.cur(b)
	prevA, prevB := c.before(a), c.before(b)
	if !defined(curA, curB, prevA, prevB) {
		return false, false
	}
	return prevA <= prevB && curA > curB, true
}

func scoreMACrossovers(c *scoreContext) contribution {
	out := contribution{}
	type cross struct {
		fast, slow string
		weight     float64
		label      string
	}
	for _, cr := range []cross{
		{indicators.SMA5, indicators.SMA20, 2, "SMA5/SMA20"},
		{indicators.SMA20, indicators.SMA50, 1, "SMA20/SMA50"},
		{indicators.SMA50, indicators.SMA200, 3, "SMA50/SMA200"},
	} {
		if up, ok := crossedAbove(c, cr.fast, cr.slow); ok {
			out.applicable = true
			if up {
				out.buy += cr.weight
				out.explain(cr.label + " bullish cross")
			}
		}
		if down, ok := crossedAbove(c, cr.slow, cr.fast); ok {
			out.applicable = true
			if down {
				out.sell += cr.weight
				out.explain(cr.label + " bearish cross")
			}
		}
	}
	return out
}

func scoreRSI(c *scoreContext) contribution {
	out := contribution{}
	rsi := c.cur(indicators.RSI)
	if indicators.Defined(rsi) {
		out.applicable = true
		switch {
		case rsi < 30:
			out.buy += 2
			out.explain("RSI oversold")
		case rsi > 70:
			out.sell += 2
			out.explain("RSI overbought")
		case rsi >= 30 && rsi <= 45:
			out.buy++
		case rsi >= 55 && rsi <= 70:
			out.sell++
		}
	}

	// Divergence between RSI and price direction
	prevRSI := c.before(indicators.RSI)
	if defined(rsi, prevRSI) {
		out.applicable = true
		rsiUp := rsi > prevRSI
		priceUp := c.close > c.prevClose
		if rsiUp && !priceUp {
			out.buy++
		} else if !rsiUp && priceUp {
			out.sell++
		}
	}
	return out
}

func scoreMACD(c *scoreContext) contribution {
	out := contribution{}
	if up, ok := crossedAbove(c, indicators.MACD, indicators.MACDSignal); ok {
		out.applicable = true
		if up {
			out.buy += 2
			out.explain("MACD bullish crossover")
		}
	}
	if down, ok := crossedAbove(c, indicators.MACDSignal, indicators.MACD); ok {
		out.applicable = true
		if down {
			out.sell += 2
			out.explain("MACD bearish crossover")
		}
	}

	hist, prevHist := c.cur(indicators.MACDHist), c.before(indicators.MACDHist)
	if defined(hist, prevHist) {
		out.applicable = true
		if prevHist <= 0 && hist > 0 {
			out.buy++
		} else if prevHist >= 0 && hist < 0 {
			out.sell++
		}
	}
	return out
}

func scoreBollinger(c *scoreContext) contribution {
	out := contribution{}
	upper, lower, mid := c.cur(indicators.BBUpper), c.cur(indicators.BBLower), c.cur(indicators.BBMid)
	if defined(upper, lower) {
		out.applicable = true
		if c.close < lower {
			out.buy++
			out.explain("close below lower band")
		} else if c.close > upper {
			out.sell++
			out.explain("close above upper band")
		}
	}

	// Band-width squeeze against its own 20-day average
	width := c.cur(indicators.BBWidth)
	avgWidth, n := 0.0, 0
	for i := c.last - 19; i <= c.last; i++ {
		if v := c.at(indicators.BBWidth, i); indicators.Defined(v) {
			avgWidth += v
			n++
		}
	}
	if defined(width, mid) && n == 20 {
		out.applicable = true
		avgWidth /= float64(n)
		if width < 0.8*avgWidth {
			if c.close > mid {
				out.buy++
			} else if c.close < mid {
				out.sell++
			}
		}
	}
	return out
}

func scoreStochastic(c *scoreContext) contribution {
	out := contribution{}
	k, d := c.cur(indicators.StochK), c.cur(indicators.StochD)
	prevK, prevD := c.before(indicators.StochK), c.before(indicators.StochD)
	if !defined(k, d, prevK, prevD) {
		return out
	}
	out.applicable = true
	if k < 20 && prevK <= prevD && k > d {
		out.buy++
		out.explain("stochastic bullish reversal")
	} else if k > 80 && prevK >= prevD && k < d {
		out.sell++
		out.explain("stochastic bearish reversal")
	}
	return out
}

func scoreVolume(c *scoreContext) contribution {
	out := contribution{}
	ratio := c.cur(indicators.VolumeRatio)
	if indicators.Defined(ratio) {
		out.applicable = true
		if ratio > 1.5 {
			if c.close > c.prevClose {
				out.buy++
				out.explain("volume surge with price up")
			} else if c.close < c.prevClose {
				out.sell++
				out.explain("volume surge with price down")
			}
		}
	}

	if up, ok := crossedAbove(c, indicators.OBV, indicators.OBVSMA); ok {
		out.applicable = true
		if up {
			out.buy++
		}
	}
	if down, ok := crossedAbove(c, indicators.OBVSMA, indicators.OBV); ok {
		out.applicable = true
		if down {
			out.sell++
		}
	}
	return out
}

func scoreMomentum(c *scoreContext) contribution {
	out := contribution{}
	roc5, roc20 := c.cur(indicators.ROC5), c.cur(indicators.ROC20)
	if !defined(roc5, roc20) {
		return out
	}
	out.applicable = true
	if roc5 > 0 && roc20 > 0 {
		out.buy++
	} else if roc5 < 0 && roc20 < 0 {
		out.sell++
	}
	return out
}

func scoreSupportResistance(c *scoreContext) contribution {
	out := contribution{}
	// Compare against the prior bar's levels so the current bar cannot
	// raise its own breakout threshold.
	resistance := c.before(indicators.Resistance)
	support := c.before(indicators.Support)
	if !defined(resistance, support) {
		return out
	}
	out.applicable = true
	if c.close > resistance {
		out.buy += 2
		out.explain("breakout above resistance")
	} else if c.close < support {
		out.sell += 2
		out.explain("breakdown below support")
	}
	return out
}

func scoreADXTrend(c *scoreContext) contribution {
	out := contribution{}
	adx := c.cur(indicators.ADX)
	sma5, sma20 := c.cur(indicators.SMA5), c.cur(indicators.SMA20)
	if !defined(adx, sma5, sma20) {
		return out
	}
	out.applicable = true
	if adx > 25 {
		if sma5 > sma20 {
			out.buy++
		} else if sma5 < sma20 {
			out.sell++
		}
	}
	return out
}
