package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestShortSeriesReturnsNotOK(t *testing.T) {
	closes := ramp(19)

	_, ok := SMA(closes, 20)
	assert.False(t, ok)
	_, ok = EMA(closes[:11], 12)
	assert.False(t, ok)
	_, ok = RSI(closes[:14], 14)
	assert.False(t, ok)
	_, ok = MACD(ramp(25), 12, 26, 9)
	assert.False(t, ok)
	_, ok = Bollinger(closes, 20, 2)
	assert.False(t, ok)
	_, ok = ATR(make([]Kline, 14), 14)
	assert.False(t, ok)
	_, ok = AnalyzeVolume(flat(19, 1000), 20)
	assert.False(t, ok)
	_, ok = Velocity(closes[:4])
	assert.False(t, ok)
	_, ok = VolatilityPercentile(ramp(99), 100)
	assert.False(t, ok)
	assert.Equal(t, TrendUnknown, DetermineTrend(closes))
}

func TestSMA(t *testing.T) {
	v, ok := SMA(ramp(20), 20)
	require.True(t, ok)
	require.InDelta(t, 10.5, v, 1e-12)
}

func TestEMASeededFromFirstElement(t *testing.T) {
	v, ok := EMA([]float64{1, 2, 3, 4, 5, 6}, 3)
	require.True(t, ok)
	require.InDelta(t, 5.03125, v, 1e-12)
}

func TestRSI(t *testing.T) {
	closes := []float64{44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00, 46.03, 46.41, 46.22, 45.64}
	v, ok := RSI(closes, 14)
	require.True(t, ok)
	require.InDelta(t, 57.915021, v, 1e-6)
}

func TestRSIDegenerateAverages(t *testing.T) {
	up, ok := RSI(ramp(15), 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, up)

	down := ramp(15)
	for i, j := 0, len(down)-1; i < j; i, j = i+1, j-1 {
		down[i], down[j] = down[j], down[i]
	}
	v, ok := RSI(down, 14)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	v, ok = RSI(flat(15, 1.1), 14)
	require.True(t, ok)
	assert.Equal(t, 50.0, v)
}

func TestMACDSignalTracksLine(t *testing.T) {
	v, ok := MACD(ramp(30), 12, 26, 9)
	require.True(t, ok)
	require.InDelta(t, 5.701697, v.MACD, 1e-6)
	assert.Equal(t, v.MACD, v.Signal)
	assert.Zero(t, v.Histogram)
}

func TestBollinger(t *testing.T) {
	bands, ok := Bollinger(ramp(20), 20, 2)
	require.True(t, ok)
	require.InDelta(t, 10.5, bands.Middle, 1e-12)
	require.NotNil(t, bands.Position)
	require.InDelta(t, 0.911877, *bands.Position, 1e-5)
	assert.Greater(t, bands.Upper, bands.Middle)
	assert.Less(t, bands.Lower, bands.Middle)
}

func TestBollingerFlatSeries(t *testing.T) {
	bands, ok := Bollinger(flat(20, 1.25), 20, 2)
	require.True(t, ok)
	assert.Equal(t, bands.Middle, bands.Upper)
	assert.Equal(t, bands.Middle, bands.Lower)
	assert.Nil(t, bands.Position)
}

func TestATR(t *testing.T) {
	highs := []float64{1.1050, 1.1080, 1.1065, 1.1100, 1.1120, 1.1095, 1.1130, 1.1150, 1.1140, 1.1170, 1.1160, 1.1190, 1.1210, 1.1185, 1.1220}
	lows := []float64{1.0990, 1.1010, 1.1020, 1.1040, 1.1060, 1.1050, 1.1070, 1.1090, 1.1085, 1.1110, 1.1100, 1.1130, 1.1150, 1.1140, 1.1160}
	closes := []float64{1.1020, 1.1060, 1.1040, 1.1090, 1.1100, 1.1070, 1.1120, 1.1130, 1.1110, 1.1160, 1.1130, 1.1180, 1.1190, 1.1150, 1.1200}

	klines := make([]Kline, len(closes))
	for i := range closes {
		klines[i] = Kline{High: highs[i], Low: lows[i], Close: closes[i]}
	}
	atr, ok := ATR(klines, 14)
	require.True(t, ok)
	assert.GreaterOrEqual(t, atr, 0.0)
	require.InDelta(t, 0.0059, atr, 1e-4)
	require.InDelta(t, 0.005857, atr, 1e-6)
}

func TestVolatility(t *testing.T) {
	v, ok := Volatility(ramp(20))
	require.True(t, ok)
	require.InDelta(t, 3.514384, v, 1e-6)

	_, ok = Volatility([]float64{1})
	assert.False(t, ok)
}

func TestDetermineTrend(t *testing.T) {
	assert.Equal(t, TrendBullish, DetermineTrend(ramp(20)))

	down := ramp(20)
	for i := range down {
		down[i] = 21 - down[i]
	}
	assert.Equal(t, TrendBearish, DetermineTrend(down))
	assert.Equal(t, TrendSideways, DetermineTrend(flat(20, 1.1)))
}

func TestSupportResistance(t *testing.T) {
	lows := append([]float64{0.5}, ramp(20)...)
	s, ok := Support(lows, 20)
	require.True(t, ok)
	assert.Equal(t, 1.0, s)

	r, ok := Resistance(ramp(25), 20)
	require.True(t, ok)
	assert.Equal(t, 25.0, r)
}

func TestAnalyzeVolume(t *testing.T) {
	volumes := append(flat(19, 1000), 2000)
	profile, ok := AnalyzeVolume(volumes, 20)
	require.True(t, ok)
	assert.Equal(t, "above", profile.Trend)
	require.InDelta(t, 1050.0, profile.Average, 1e-9)
	require.InDelta(t, 2000.0/1050.0, profile.Ratio, 1e-9)

	_, ok = AnalyzeVolume(flat(20, 0), 20)
	assert.False(t, ok)
}

func TestVelocity(t *testing.T) {
	v, ok := Velocity([]float64{90, 100, 101, 102, 103, 104})
	require.True(t, ok)
	require.InDelta(t, 0.009853, v, 1e-6)
}

func TestVolatilityPercentileRange(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	v, ok := VolatilityPercentile(closes, 100)
	require.True(t, ok)
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 100.0)
}

func TestCompute(t *testing.T) {
	closes := ramp(30)
	series := Series{
		Highs:   make([]float64, len(closes)),
		Lows:    make([]float64, len(closes)),
		Closes:  closes,
		Volumes: flat(len(closes), 1000),
	}
	for i, c := range closes {
		series.Highs[i] = c + 0.5
		series.Lows[i] = c - 0.5
	}

	set := Compute(series)
	require.NotNil(t, set.RSI)
	require.NotNil(t, set.MACD)
	require.NotNil(t, set.Bollinger)
	require.NotNil(t, set.ATR)
	require.NotNil(t, set.SMA20)
	require.NotNil(t, set.EMA12)
	require.NotNil(t, set.EMA26)
	require.NotNil(t, set.Volume)
	assert.Equal(t, TrendBullish, set.Trend)
	assert.Equal(t, 10.5, *set.Support)
	assert.Equal(t, 30.5, *set.Resistance)
	assert.Nil(t, set.VolatilityPercentile)

	short := Compute(Series{Closes: ramp(20)[:19], Highs: ramp(19), Lows: ramp(19), Volumes: flat(19, 1000)})
	assert.Nil(t, short.SMA20)
	assert.Nil(t, short.Bollinger)
	assert.Nil(t, short.MACD)
	assert.NotNil(t, short.RSI)
	assert.Equal(t, TrendUnknown, short.Trend)
}
