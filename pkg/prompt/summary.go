package prompt

import (
	"fmt"
	"strings"

	"marketlens/pkg/market"
	"marketlens/pkg/market/indicators"
)

// Data is the input of the analysis template.
type Data struct {
	Symbol        string
	Timeframe     string
	AnalysisMode  string
	CaptureMode   string
	MarketSummary string
}

// UnavailableLine replaces the live data block when nothing could be fetched.
const UnavailableLine = "LIVE DATA: UNAVAILABLE - Visual analysis only"

// MarketSummary renders the live data block of the prompt. Missing RSI reads
// as 50, missing MACD and price as 0, missing momentum as NEUTRAL.
func MarketSummary(mc *market.MarketContext) string {
	if mc == nil || mc.Fallback {
		return UnavailableLine
	}

	rsi, macd := 50.0, 0.0
	if t := mc.Technical; t != nil {
		if t.RSI != nil {
			rsi = *t.RSI
		}
		if t.MACD != nil {
			macd = t.MACD.MACD
		}
	}
	var price, change float64
	if q := mc.Live; q != nil {
		price = q.Price
		if q.ChangePercent != nil {
			change = *q.ChangePercent
		}
	}
	momentum := "NEUTRAL"
	if mc.Momentum != nil && mc.Momentum.Direction != "" {
		momentum = string(mc.Momentum.Direction)
	}
	macdSign := "NEG"
	if macd > 0 {
		macdSign = "POS"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "LIVE DATA: Price=%.5f, Change=%.2f%%, RSI=%.1f, MACD=%s, Momentum=%s",
		price, change, rsi, macdSign, momentum)
	if n := mc.Sentiment.NewsCount; n > 0 {
		fmt.Fprintf(&b, "\nNEWS ALERT: %d items affecting %s", n, mc.Symbol)
	}
	return b.String()
}

// IndicatorView is the human-readable indicator block attached to a report.
type IndicatorView struct {
	RSI        string `json:"rsi,omitempty"`
	MACD       string `json:"macd,omitempty"`
	Bollinger  string `json:"bollinger,omitempty"`
	ATR        string `json:"atr,omitempty"`
	Support    string `json:"support,omitempty"`
	Resistance string `json:"resistance,omitempty"`
	Trend      string `json:"trend,omitempty"`
}

// FormatIndicators renders the set with fixed decimals and signal labels.
// A zero reading gets no label.
func FormatIndicators(set *indicators.Set) *IndicatorView {
	if set == nil {
		return nil
	}
	view := &IndicatorView{
		ATR:        fixed4(set.ATR),
		Support:    fixed4(set.Support),
		Resistance: fixed4(set.Resistance),
		Trend:      string(set.Trend),
	}
	if set.RSI != nil {
		view.RSI = labelled(fmt.Sprintf("%.2f", *set.RSI), *set.RSI, market.RSISignal)
	}
	if set.MACD != nil {
		view.MACD = labelled(fmt.Sprintf("%.4f", set.MACD.MACD), set.MACD.MACD, market.MACDSignal)
	}
	if set.Bollinger != nil {
		pos := 0.0
		if set.Bollinger.Position != nil {
			pos = *set.Bollinger.Position
		}
		view.Bollinger = labelled(fmt.Sprintf("%.1f%%", pos*100), pos, market.BollingerSignal)
	}
	return view
}

func labelled(text string, v float64, signal func(float64) string) string {
	if v == 0 {
		return text
	}
	return fmt.Sprintf("%s (%s)", text, signal(v))
}

func fixed4(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.4f", *v)
}
