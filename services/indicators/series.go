package indicators

import "math"

// Series primitives. Every rolling computation yields NaN for the first
// window-1 positions and for any window containing a NaN input, so
// warm-up gaps propagate instead of turning into false zeros.

// Defined reports whether an indicator value is usable.
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// rollingMean computes the simple moving average over the given window.
func rollingMean(src []float64, window int) []float64 {
	out := nanSeries(len(src))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(src); i++ {
		sum := 0.0
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(src[j]) {
				ok = false
				break
			}
			sum += src[j]
		}
		if ok {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// rollingStd computes the rolling sample standard deviation.
func rollingStd(src []float64, window int) []float64 {
	out := nanSeries(len(src))
	if window <= 1 {
		return out
	}
	for i := window - 1; i < len(src); i++ {
		sum := 0.0
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(src[j]) {
				ok = false
				break
			}
			sum += src[j]
		}
		if !ok {
			continue
		}
		mean := sum / float64(window)
		variance := 0.0
		for j := i - window + 1; j <= i; j++ {
			d := src[j] - mean
			variance += d * d
		}
		out[i] = math.Sqrt(variance / float64(window-1))
	}
	return out
}

// rollingMin computes the rolling minimum over the given window.
func rollingMin(src []float64, window int) []float64 {
	out := nanSeries(len(src))
	for i := window - 1; i < len(src); i++ {
		m := math.Inf(1)
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(src[j]) {
				ok = false
				break
			}
			if src[j] < m {
				m = src[j]
			}
		}
		if ok {
			out[i] = m
		}
	}
	return out
}

// rollingMax computes the rolling maximum over the given window.
func rollingMax(src []float64, window int) []float64 {
	out := nanSeries(len(src))
	for i := window - 1; i < len(src); i++ {
		m := math.Inf(-1)
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(src[j]) {
				ok = false
				break
			}
			if src[j] > m {
				m = src[j]
			}
		}
		if ok {
			out[i] = m
		}
	}
	return out
}

// emaSeries computes an exponential moving average with smoothing factor
// 2/(span+1), seeded with the first defined value. The first span-1
// positions after the seed stay NaN as warm-up.
func emaSeries(src []float64, span int) []float64 {
	out := nanSeries(len(src))
	if span <= 0 {
		return out
	}
	first := -1
	for i, v := range src {
		if !math.IsNaN(v) {
			first = i
			break
		}
	}
	if first < 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	ema := src[first]
	defined := first + span - 1
	if first >= defined {
		out[first] = ema
	}
	for i := first + 1; i < len(src); i++ {
		if math.IsNaN(src[i]) {
			// gaps inside the series keep the running value
			continue
		}
		ema = (src[i]-ema)*alpha + ema
		if i >= defined {
			out[i] = ema
		}
	}
	return out
}

// diffSeries computes first differences; position 0 is NaN.
func diffSeries(src []float64) []float64 {
	out := nanSeries(len(src))
	for i := 1; i < len(src); i++ {
		if math.IsNaN(src[i]) || math.IsNaN(src[i-1]) {
			continue
		}
		out[i] = src[i] - src[i-1]
	}
	return out
}

// pctChange computes percentage change over the given period.
func pctChange(src []float64, period int) []float64 {
	out := nanSeries(len(src))
	for i := period; i < len(src); i++ {
		prev := src[i-period]
		if math.IsNaN(src[i]) || math.IsNaN(prev) || prev == 0 {
			continue
		}
		out[i] = (src[i] - prev) / prev * 100
	}
	return out
}

// divide computes a/b element-wise; division by zero yields NaN unless the
// numerator is also zero, which yields NaN too (0/0 is undefined, not an
// error).
func divide(a, b []float64) []float64 {
	out := nanSeries(len(a))
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) || b[i] == 0 {
			continue
		}
		out[i] = a[i] / b[i]
	}
	return out
}
