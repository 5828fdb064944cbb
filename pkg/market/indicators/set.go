package indicators

// Default indicator periods.
const (
	RSIPeriod             = 14
	MACDFast              = 12
	MACDSlow              = 26
	MACDSignal            = 9
	BollingerPeriod       = 20
	BollingerWidth        = 2.0
	ATRPeriod             = 14
	SMAPeriod             = 20
	LevelWindow           = 20
	VolumePeriod          = 20
	PercentileLookback    = 100
	MinSeriesForIndicator = 20
)

// Series is the column view of an ascending candle series.
type Series struct {
	Highs   []float64
	Lows    []float64
	Closes  []float64
	Volumes []float64
}

// Set is the immutable indicator snapshot computed for one request.
// Nil fields mean the series was too short for that indicator.
type Set struct {
	RSI                  *float64       `json:"rsi"`
	MACD                 *MACDValue     `json:"macd"`
	Bollinger            *Bands         `json:"bollinger"`
	ATR                  *float64       `json:"atr"`
	SMA20                *float64       `json:"sma20"`
	EMA12                *float64       `json:"ema12"`
	EMA26                *float64       `json:"ema26"`
	Support              *float64       `json:"support"`
	Resistance           *float64       `json:"resistance"`
	Volatility           *float64       `json:"volatility"`
	Trend                Trend          `json:"trend"`
	Volume               *VolumeProfile `json:"volume"`
	Velocity             *float64       `json:"velocity"`
	VolatilityPercentile *float64       `json:"volatilityPercentile"`
}

// Compute derives the full indicator set from a series.
func Compute(s Series) *Set {
	klines := make([]Kline, len(s.Closes))
	for i := range s.Closes {
		klines[i] = Kline{High: at(s.Highs, i), Low: at(s.Lows, i), Close: s.Closes[i]}
	}

	set := &Set{
		RSI:                  optional(RSI(s.Closes, RSIPeriod)),
		ATR:                  optional(ATR(klines, ATRPeriod)),
		SMA20:                optional(SMA(s.Closes, SMAPeriod)),
		EMA12:                optional(EMA(s.Closes, MACDFast)),
		EMA26:                optional(EMA(s.Closes, MACDSlow)),
		Support:              optional(Support(s.Lows, LevelWindow)),
		Resistance:           optional(Resistance(s.Highs, LevelWindow)),
		Volatility:           optional(Volatility(s.Closes)),
		Trend:                DetermineTrend(s.Closes),
		Velocity:             optional(Velocity(s.Closes)),
		VolatilityPercentile: optional(VolatilityPercentile(s.Closes, PercentileLookback)),
	}
	if macd, ok := MACD(s.Closes, MACDFast, MACDSlow, MACDSignal); ok {
		set.MACD = &macd
	}
	if bands, ok := Bollinger(s.Closes, BollingerPeriod, BollingerWidth); ok {
		set.Bollinger = &bands
	}
	if vol, ok := AnalyzeVolume(s.Volumes, VolumePeriod); ok {
		set.Volume = &vol
	}
	return set
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

func at(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}
