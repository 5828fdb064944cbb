package market

import (
	"time"

	"marketlens/pkg/market/indicators"
)

// FallbackMessage explains a context built without any live data.
const FallbackMessage = "Live market data unavailable - proceeding with visual analysis only"

// Direction is the sign of the live price relative to the last close.
type Direction string

const (
	DirectionBullish Direction = "BULLISH"
	DirectionBearish Direction = "BEARISH"
)

// Momentum relates the live quote to the two most recent candles.
type Momentum struct {
	PriceVelocity  float64   `json:"priceVelocity"`
	CandleMomentum float64   `json:"candleMomentum"`
	VolumeRatio    float64   `json:"volumeRatio"`
	GapFromOpen    float64   `json:"gapFromOpen"`
	Direction      Direction `json:"direction"`
}

// Sentiment carries the relevant news subset.
type Sentiment struct {
	News      []NewsItem `json:"news"`
	NewsCount int        `json:"newsCount"`
}

// MarketContext is the aggregate handed to prompt construction. It is built
// once per request and not modified afterwards.
type MarketContext struct {
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Live      *Quote          `json:"live"`
	Technical *indicators.Set `json:"technical"`
	Momentum  *Momentum       `json:"momentum"`
	Sentiment Sentiment       `json:"sentiment"`
	Fallback  bool            `json:"fallback"`
	Message   string          `json:"message,omitempty"`
}

// HasLiveData reports whether any provider contributed to the context.
func (c *MarketContext) HasLiveData() bool {
	return c != nil && !c.Fallback && (c.Live != nil || c.Technical != nil || c.Sentiment.NewsCount > 0)
}

// FallbackContext is the context used when every fetch failed.
func FallbackContext(symbol string, now time.Time) *MarketContext {
	return &MarketContext{
		Symbol:    symbol,
		Timestamp: now.UTC(),
		Fallback:  true,
		Message:   FallbackMessage,
	}
}

// Synthesize merges whatever data was obtained into one context. Any input
// may be nil; when all are, the fallback context is returned.
func Synthesize(symbol string, quote *Quote, candles []Candle, news []NewsItem, now time.Time) *MarketContext {
	if quote == nil && len(candles) == 0 && len(news) == 0 {
		return FallbackContext(symbol, now)
	}

	ctx := &MarketContext{
		Symbol:    symbol,
		Timestamp: now.UTC(),
		Live:      quote,
		Sentiment: Sentiment{News: news, NewsCount: len(news)},
	}
	if len(candles) >= indicators.MinSeriesForIndicator {
		ctx.Technical = indicators.Compute(SeriesOf(candles))
	}
	if m, ok := ComputeMomentum(quote, candles); ok {
		ctx.Momentum = &m
	}
	return ctx
}

// ComputeMomentum needs a quote and at least two candles.
func ComputeMomentum(quote *Quote, candles []Candle) (Momentum, bool) {
	if quote == nil || len(candles) < 2 {
		return Momentum{}, false
	}
	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	direction := DirectionBearish
	if quote.Price > last.Close {
		direction = DirectionBullish
	}
	return Momentum{
		PriceVelocity:  ratio(quote.Price-last.Close, last.Close),
		CandleMomentum: ratio(last.Close-prev.Close, prev.Close),
		VolumeRatio:    ratio(volumeOrDefault(last.Volume), volumeOrDefault(prev.Volume)),
		GapFromOpen:    ratio(quote.Price-last.Open, last.Open),
		Direction:      direction,
	}, true
}

// SeriesOf splits candles into the column form used by the indicator engine.
func SeriesOf(candles []Candle) indicators.Series {
	s := indicators.Series{
		Highs:   make([]float64, len(candles)),
		Lows:    make([]float64, len(candles)),
		Closes:  make([]float64, len(candles)),
		Volumes: make([]float64, len(candles)),
	}
	for i, c := range candles {
		s.Highs[i] = c.High
		s.Lows[i] = c.Low
		s.Closes[i] = c.Close
		s.Volumes[i] = volumeOrDefault(c.Volume)
	}
	return s
}

func volumeOrDefault(v float64) float64 {
	if v <= 0 {
		return DefaultVolume
	}
	return v
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
