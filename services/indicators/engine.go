package indicators

import (
	"math"

	"stock_trading_backend/models"
)

// Indicator series names. The engine computes every series in one pass,
// in dependency order, so derived indicators never trigger ad hoc
// recomputation.
const (
	SMA5   = "sma_5"
	SMA10  = "sma_10"
	SMA20  = "sma_20"
	SMA50  = "sma_50"
	SMA200 = "sma_200"

	EMA5  = "ema_5"
	EMA10 = "ema_10"
	EMA20 = "ema_20"

	RSI = "rsi"

	MACD       = "macd"
	MACDSignal = "macd_signal"
	MACDHist   = "macd_hist"

	BBUpper = "bb_upper"
	BBMid   = "bb_mid"
	BBLower = "bb_lower"
	BBWidth = "bb_width"
	BBPctB  = "bb_pct_b"

	StochK = "stoch_k"
	StochD = "stoch_d"

	ATR = "atr"
	OBV = "obv"
	// 20-day SMA of OBV, used for OBV crossover checks
	OBVSMA = "obv_sma"
	ADX    = "adx"

	ROC5  = "roc_5"
	ROC10 = "roc_10"
	ROC20 = "roc_20"

	Volatility  = "volatility"
	VolumeSMA   = "volume_sma"
	VolumeRatio = "volume_ratio"

	Support    = "support"
	Resistance = "resistance"
)

// Set maps indicator names to numeric series index-aligned with the
// source bars. Warm-up positions hold NaN rather than a number.
type Set struct {
	bars   []models.Bar
	series map[string][]float64
}

// Compute derives the full indicator battery from a date-ascending bar
// series. It is a pure transform and never fails; insufficient data
// simply leaves NaN gaps.
func Compute(bars []models.Bar) *Set {
	n := len(bars)
	closes := models.Closes(bars)
	volumes := models.Volumes(bars)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
	}

	s := &Set{bars: bars, series: make(map[string][]float64, 32)}

	// Moving averages
	s.series[SMA5] = rollingMean(closes, 5)
	s.series[SMA10] = rollingMean(closes, 10)
	s.series[SMA20] = rollingMean(closes, 20)
	s.series[SMA50] = rollingMean(closes, 50)
	s.series[SMA200] = rollingMean(closes, 200)
	s.series[EMA5] = emaSeries(closes, 5)
	s.series[EMA10] = emaSeries(closes, 10)
	s.series[EMA20] = emaSeries(closes, 20)

	// RSI: ratio of rolling mean gains to rolling mean losses over 14
	// bars; 0/0 yields NaN, gain over zero loss saturates at 100.
	s.series[RSI] = rsiSeries(closes, 14)

	// MACD
	ema12 := emaSeries(closes, 12)
	ema26 := emaSeries(closes, 26)
	macd := nanSeries(n)
	for i := 0; i < n; i++ {
		if Defined(ema12[i]) && Defined(ema26[i]) {
			macd[i] = ema12[i] - ema26[i]
		}
	}
	signal := emaSeries(macd, 9)
	hist := nanSeries(n)
	for i := 0; i < n; i++ {
		if Defined(macd[i]) && Defined(signal[i]) {
			hist[i] = macd[i] - signal[i]
		}
	}
	s.series[MACD] = macd
	s.series[MACDSignal] = signal
	s.series[MACDHist] = hist

	// Bollinger bands
	mid := s.series[SMA20]
	std20 := rollingStd(closes, 20)
	upper := nanSeries(n)
	lower := nanSeries(n)
	width := nanSeries(n)
	pctB := nanSeries(n)
	for i := 0; i < n; i++ {
		if !Defined(mid[i]) || !Defined(std20[i]) {
			continue
		}
		upper[i] = mid[i] + 2*std20[i]
		lower[i] = mid[i] - 2*std20[i]
		if mid[i] != 0 {
			width[i] = (upper[i] - lower[i]) / mid[i]
		}
		if band := upper[i] - lower[i]; band != 0 {
			pctB[i] = (closes[i] - lower[i]) / band
		}
	}
	s.series[BBUpper] = upper
	s.series[BBMid] = mid
	s.series[BBLower] = lower
	s.series[BBWidth] = width
	s.series[BBPctB] = pctB

	// Stochastic oscillator
	low14 := rollingMin(lows, 14)
	high14 := rollingMax(highs, 14)
	stochK := nanSeries(n)
	for i := 0; i < n; i++ {
		if !Defined(low14[i]) || !Defined(high14[i]) {
			continue
		}
		if rng := high14[i] - low14[i]; rng != 0 {
			stochK[i] = 100 * (closes[i] - low14[i]) / rng
		}
	}
	s.series[StochK] = stochK
	s.series[StochD] = rollingMean(stochK, 3)

	// ATR
	tr := trueRangeSeries(bars)
	s.series[ATR] = rollingMean(tr, 14)

	// OBV and its 20-day average
	obv := obvSeries(closes, volumes)
	s.series[OBV] = obv
	s.series[OBVSMA] = rollingMean(obv, 20)

	// ADX
	s.series[ADX] = adxSeries(bars, 14)

	// Rate of change
	s.series[ROC5] = pctChange(closes, 5)
	s.series[ROC10] = pctChange(closes, 10)
	s.series[ROC20] = pctChange(closes, 20)

	// Annualized 20-day volatility of daily returns
	returns := nanSeries(n)
	for i := 1; i < n; i++ {
		if closes[i-1] != 0 {
			returns[i] = closes[i]/closes[i-1] - 1
		}
	}
	vol := rollingStd(returns, 20)
	for i := range vol {
		if Defined(vol[i]) {
			vol[i] *= math.Sqrt(252)
		}
	}
	s.series[Volatility] = vol

	// Volume ratio against its 20-day average
	volSMA := rollingMean(volumes, 20)
	s.series[VolumeSMA] = volSMA
	s.series[VolumeRatio] = divide(volumes, volSMA)

	// Rolling support and resistance
	s.series[Support] = rollingMin(lows, 20)
	s.series[Resistance] = rollingMax(highs, 20)

	return s
}

// Len returns the number of bars the set is aligned with.
func (s *Set) Len() int {
	return len(s.bars)
}

// Bars returns the source bar series.
func (s *Set) Bars() []models.Bar {
	return s.bars
}

// Series returns the named series, or nil when unknown.
func (s *Set) Series(name string) []float64 {
	return s.series[name]
}

// At returns the value of the named series at index i. Unknown names and
// out-of-range indexes yield NaN so absent prerequisites degrade instead
// of failing.
func (s *Set) At(name string, i int) float64 {
	ser, ok := s.series[name]
	if !ok || i < 0 || i >= len(ser) {
		return math.NaN()
	}
	return ser[i]
}

// Latest returns the most recent value of the named series.
func (s *Set) Latest(name string) float64 {
	return s.At(name, len(s.bars)-1)
}

// Prev returns the second most recent value of the named series.
func (s *Set) Prev(name string) float64 {
	return s.At(name, len(s.bars)-2)
}

// LatestRow returns the most recent value of every series, keyed by name.
func (s *Set) LatestRow() map[string]float64 {
	row := make(map[string]float64, len(s.series))
	for name := range s.series {
		row[name] = s.Latest(name)
	}
	return row
}

func rsiSeries(closes []float64, period int) []float64 {
	n := len(closes)
	delta := diffSeries(closes)
	gains := nanSeries(n)
	losses := nanSeries(n)
	for i := 1; i < n; i++ {
		if math.IsNaN(delta[i]) {
			continue
		}
		if delta[i] > 0 {
			gains[i], losses[i] = delta[i], 0
		} else {
			gains[i], losses[i] = 0, -delta[i]
		}
	}
	avgGain := rollingMean(gains, period)
	avgLoss := rollingMean(losses, period)
	out := nanSeries(n)
	for i := 0; i < n; i++ {
		if !Defined(avgGain[i]) || !Defined(avgLoss[i]) {
			continue
		}
		if avgLoss[i] == 0 {
			if avgGain[i] == 0 {
				continue // 0/0: undefined, not an error
			}
			out[i] = 100
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// trueRangeSeries computes max(high-low, |high-prevClose|, |low-prevClose|);
// the first bar has no previous close and uses high-low alone.
func trueRangeSeries(bars []models.Bar) []float64 {
	out := nanSeries(len(bars))
	for i, b := range bars {
		if i == 0 {
			out[i] = b.High - b.Low
			continue
		}
		prevClose := bars[i-1].Close
		tr := b.High - b.Low
		if hc := math.Abs(b.High - prevClose); hc > tr {
			tr = hc
		}
		if lc := math.Abs(b.Low - prevClose); lc > tr {
			tr = lc
		}
		out[i] = tr
	}
	return out
}

func obvSeries(closes, volumes []float64) []float64 {
	out := nanSeries(len(closes))
	if len(closes) == 0 {
		return out
	}
	obv := 0.0
	out[0] = 0
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			obv += volumes[i]
		case closes[i] < closes[i-1]:
			obv -= volumes[i]
		}
		out[i] = obv
	}
	return out
}

// adxSeries implements the standard Wilder construction: smoothed +DM,
// -DM and TR give the directional indexes, and ADX is the Wilder-smoothed
// mean of DX.
func adxSeries(bars []models.Bar, period int) []float64 {
	n := len(bars)
	out := nanSeries(n)
	if n < 2*period+1 {
		return out
	}

	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		upMove := bars[i].High - bars[i-1].High
		downMove := bars[i-1].Low - bars[i].Low
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		prevClose := bars[i-1].Close
		t := bars[i].High - bars[i].Low
		if hc := math.Abs(bars[i].High - prevClose); hc > t {
			t = hc
		}
		if lc := math.Abs(bars[i].Low - prevClose); lc > t {
			t = lc
		}
		tr[i] = t
	}

	// Initial smoothed sums over the first `period` movements
	var sTR, sPlus, sMinus float64
	for i := 1; i <= period; i++ {
		sTR += tr[i]
		sPlus += plusDM[i]
		sMinus += minusDM[i]
	}

	dx := nanSeries(n)
	computeDX := func(i int) {
		if sTR == 0 {
			return
		}
		plusDI := 100 * sPlus / sTR
		minusDI := 100 * sMinus / sTR
		if sum := plusDI + minusDI; sum != 0 {
			dx[i] = 100 * math.Abs(plusDI-minusDI) / sum
		}
	}
	computeDX(period)

	for i := period + 1; i < n; i++ {
		sTR = sTR - sTR/float64(period) + tr[i]
		sPlus = sPlus - sPlus/float64(period) + plusDM[i]
		sMinus = sMinus - sMinus/float64(period) + minusDM[i]
		computeDX(i)
	}

	// First ADX value is the plain mean of the first `period` DX values
	var dxSum float64
	count := 0
	for i := period; i < period*2 && i < n; i++ {
		if Defined(dx[i]) {
			dxSum += dx[i]
			count++
		}
	}
	if count < period {
		return out
	}
	adx := dxSum / float64(period)
	out[period*2-1] = adx
	for i := period * 2; i < n; i++ {
		if !Defined(dx[i]) {
			continue
		}
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
		out[i] = adx
	}
	return out
}
