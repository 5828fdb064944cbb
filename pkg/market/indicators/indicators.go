package indicators

import "math"

// Calculations return ok=false when the input is shorter than the minimum
// length the indicator needs. Callers never receive partial values.

// SMA returns the mean of the last period values.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	return mean(values[len(values)-period:]), true
}

// EMA folds the whole series into an exponential moving average. The average
// is seeded from the first element rather than a period-length SMA.
func EMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	return emaFold(values, period), true
}

func emaFold(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	multiplier := 2.0 / float64(period+1)
	ema := values[0]
	for _, v := range values[1:] {
		ema = v*multiplier + ema*(1-multiplier)
	}
	return ema
}

// RSI computes the Relative Strength Index with Wilder smoothing.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gainSum += change
		} else {
			lossSum -= change
		}
	}

	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain := math.Max(change, 0)
		loss := math.Max(-change, 0)

		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}
	return computeRSI(avgGain, avgLoss), true
}

func computeRSI(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50.0
	case avgLoss == 0:
		return 100.0
	case avgGain == 0:
		return 0.0
	default:
		rs := avgGain / avgLoss
		return 100.0 - (100.0 / (1.0 + rs))
	}
}

// MACDValue holds the MACD line, signal line and histogram.
type MACDValue struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD computes the MACD using fast/slow EMAs. The signal line is an EMA over
// the single latest MACD value, so it equals the MACD line and the histogram
// is zero. Downstream prompts depend on this shape.
func MACD(closes []float64, fast, slow, signal int) (MACDValue, bool) {
	if fast <= 0 || slow <= 0 || signal <= 0 || len(closes) < slow || len(closes) < fast {
		return MACDValue{}, false
	}
	line := emaFold(closes, fast) - emaFold(closes, slow)
	sig := emaFold([]float64{line}, signal)
	return MACDValue{
		MACD:      line,
		Signal:    sig,
		Histogram: line - sig,
	}, true
}

// Bands describes Bollinger Bands around a simple moving average.
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
	// Position is the 0..1 location of the last close between the bands.
	// It is nil when the bands collapse (zero deviation).
	Position *float64 `json:"position"`
}

// Bollinger computes bands using the population standard deviation.
func Bollinger(closes []float64, period int, width float64) (Bands, bool) {
	if period <= 0 || len(closes) < period {
		return Bands{}, false
	}
	window := closes[len(closes)-period:]
	middle := mean(window)
	sigma := math.Sqrt(variance(window, middle))

	bands := Bands{
		Upper:  middle + sigma*width,
		Middle: middle,
		Lower:  middle - sigma*width,
	}
	if spread := 2 * width * sigma; spread != 0 {
		pos := (closes[len(closes)-1] - bands.Lower) / spread
		bands.Position = &pos
	}
	return bands, true
}

// Kline represents the OHLC input for range based indicators.
type Kline struct {
	High  float64
	Low   float64
	Close float64
}

// ATR returns the mean of the last period true ranges.
func ATR(klines []Kline, period int) (float64, bool) {
	if period <= 0 || len(klines) < period+1 {
		return 0, false
	}
	tr := make([]float64, 0, len(klines)-1)
	for i := 1; i < len(klines); i++ {
		highLow := klines[i].High - klines[i].Low
		highClose := math.Abs(klines[i].High - klines[i-1].Close)
		lowClose := math.Abs(klines[i].Low - klines[i-1].Close)
		tr = append(tr, math.Max(highLow, math.Max(highClose, lowClose)))
	}
	return mean(tr[len(tr)-period:]), true
}

const tradingDaysPerYear = 252

// Volatility is the standard deviation of simple returns annualised by sqrt(252).
func Volatility(closes []float64) (float64, bool) {
	returns := simpleReturns(closes)
	if len(returns) == 0 {
		return 0, false
	}
	m := mean(returns)
	return math.Sqrt(variance(returns, m)) * math.Sqrt(tradingDaysPerYear), true
}

// Trend classifies price direction.
type Trend string

const (
	TrendBullish  Trend = "BULLISH"
	TrendBearish  Trend = "BEARISH"
	TrendSideways Trend = "SIDEWAYS"
	TrendUnknown  Trend = "UNKNOWN"
)

const (
	trendWindow    = 10
	trendThreshold = 0.001
)

// DetermineTrend compares the mean of the last 10 closes with the 10 before.
func DetermineTrend(closes []float64) Trend {
	if len(closes) < 2*trendWindow {
		return TrendUnknown
	}
	recent := mean(closes[len(closes)-trendWindow:])
	older := mean(closes[len(closes)-2*trendWindow : len(closes)-trendWindow])

	switch {
	case recent > older*(1+trendThreshold):
		return TrendBullish
	case recent < older*(1-trendThreshold):
		return TrendBearish
	default:
		return TrendSideways
	}
}

// Support returns the lowest low over the last window values.
func Support(lows []float64, window int) (float64, bool) {
	if window <= 0 || len(lows) == 0 {
		return 0, false
	}
	if len(lows) > window {
		lows = lows[len(lows)-window:]
	}
	min := lows[0]
	for _, v := range lows[1:] {
		min = math.Min(min, v)
	}
	return min, true
}

// Resistance returns the highest high over the last window values.
func Resistance(highs []float64, window int) (float64, bool) {
	if window <= 0 || len(highs) == 0 {
		return 0, false
	}
	if len(highs) > window {
		highs = highs[len(highs)-window:]
	}
	max := highs[0]
	for _, v := range highs[1:] {
		max = math.Max(max, v)
	}
	return max, true
}

// VolumeProfile compares the latest volume to its recent average.
type VolumeProfile struct {
	Current float64 `json:"current"`
	Average float64 `json:"average"`
	Ratio   float64 `json:"ratio"`
	Trend   string  `json:"trend"` // "above" or "below"
}

// AnalyzeVolume uses a 20 period average.
func AnalyzeVolume(volumes []float64, period int) (VolumeProfile, bool) {
	avg, ok := SMA(volumes, period)
	if !ok || avg == 0 {
		return VolumeProfile{}, false
	}
	current := volumes[len(volumes)-1]
	trend := "below"
	if current > avg {
		trend = "above"
	}
	return VolumeProfile{
		Current: current,
		Average: avg,
		Ratio:   current / avg,
		Trend:   trend,
	}, true
}

// Velocity is the mean simple return across the last five closes.
func Velocity(closes []float64) (float64, bool) {
	const window = 5
	if len(closes) < window {
		return 0, false
	}
	return mean(simpleReturns(closes[len(closes)-window:])), true
}

// VolatilityPercentile ranks the current 20-bar mean absolute return against
// the rolling history, returning a value in [0,100].
func VolatilityPercentile(closes []float64, lookback int) (float64, bool) {
	const window = 20
	if lookback <= 0 || len(closes) < lookback {
		return 0, false
	}
	returns := simpleReturns(closes)
	for i := range returns {
		returns[i] = math.Abs(returns[i])
	}
	if len(returns) < window {
		return 0, false
	}
	current := mean(returns[len(returns)-window:])

	var below, total int
	for i := window; i < len(returns)-window; i++ {
		total++
		if mean(returns[i:i+window]) < current {
			below++
		}
	}
	if total == 0 {
		return 0, false
	}
	return float64(below) / float64(total) * 100, true
}

func simpleReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		out = append(out, (values[i]-values[i-1])/values[i-1])
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	acc := 0.0
	for _, v := range values {
		acc += (v - m) * (v - m)
	}
	return acc / float64(len(values))
}
