package market

// Signal labels used when rendering indicator values for the model.

// RSISignal classifies an RSI reading.
func RSISignal(rsi float64) string {
	switch {
	case rsi > 70:
		return "Overbought"
	case rsi < 30:
		return "Oversold"
	case rsi > 50:
		return "Bullish"
	default:
		return "Bearish"
	}
}

// MACDSignal classifies the MACD line.
func MACDSignal(macd float64) string {
	if macd > 0 {
		return "Bullish"
	}
	return "Bearish"
}

// BollingerSignal classifies the position of price inside the bands.
func BollingerSignal(position float64) string {
	switch {
	case position > 0.8:
		return "Near Upper Band"
	case position < 0.2:
		return "Near Lower Band"
	case position > 0.5:
		return "Above Middle"
	default:
		return "Below Middle"
	}
}
