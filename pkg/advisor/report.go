package advisor

import (
	"marketlens/pkg/llm"
	"marketlens/pkg/market"
	"marketlens/pkg/prompt"
)

// Report is the model decision enriched with the data it was given.
type Report struct {
	llm.Decision
	Symbol       string                `json:"detectedAsset"`
	Timeframe    string                `json:"timeframe"`
	CaptureMode  string                `json:"captureType,omitempty"`
	PromptDigest string                `json:"promptDigest"`
	Live         *LiveData             `json:"liveData,omitempty"`
	Indicators   *prompt.IndicatorView `json:"indicators,omitempty"`
	News         *NewsDigest           `json:"newsSentiment,omitempty"`

	Context *market.MarketContext `json:"-"`
}

// LiveData is the quote snapshot shown next to a decision.
type LiveData struct {
	Symbol        string   `json:"symbol"`
	CurrentPrice  *float64 `json:"currentPrice,omitempty"`
	PriceChange   *float64 `json:"priceChange,omitempty"`
	ChangePercent *float64 `json:"changePercent,omitempty"`
	Momentum      string   `json:"momentum,omitempty"`
	DayHigh       *float64 `json:"dayHigh,omitempty"`
	DayLow        *float64 `json:"dayLow,omitempty"`
}

// Headline is one news item in a report.
type Headline struct {
	Headline string `json:"headline"`
	Time     int64  `json:"time"`
}

// NewsDigest summarises the relevant news.
type NewsDigest struct {
	NewsCount  int        `json:"newsCount"`
	LatestNews []Headline `json:"latestNews"`
}

func buildReport(d llm.Decision, symbol string, req Request, mc *market.MarketContext) *Report {
	r := &Report{
		Decision:    d,
		Symbol:      symbol,
		Timeframe:   string(req.Timeframe),
		CaptureMode: req.CaptureMode,
		Context:     mc,
	}
	if mc == nil || mc.Fallback {
		return r
	}

	live := &LiveData{Symbol: symbol}
	if q := mc.Live; q != nil {
		price := q.Price
		live.CurrentPrice = &price
		live.PriceChange = q.Change
		live.ChangePercent = q.ChangePercent
		live.DayHigh = q.High
		live.DayLow = q.Low
	}
	if mc.Momentum != nil {
		live.Momentum = string(mc.Momentum.Direction)
	}
	r.Live = live
	r.Indicators = prompt.FormatIndicators(mc.Technical)

	news := &NewsDigest{NewsCount: mc.Sentiment.NewsCount, LatestNews: []Headline{}}
	for i, item := range mc.Sentiment.News {
		if i == latestHeadlines {
			break
		}
		news.LatestNews = append(news.LatestNews, Headline{Headline: item.Headline, Time: item.Datetime})
	}
	r.News = news
	return r
}
