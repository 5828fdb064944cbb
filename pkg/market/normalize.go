package market

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// CleanCandles drops bars with missing or non-positive prices, defaults
// absent volume, sorts ascending and removes duplicate timestamps.
func CleanCandles(in []Candle) []Candle {
	out := make([]Candle, 0, len(in))
	for _, c := range in {
		if !positive(c.Open) || !positive(c.High) || !positive(c.Low) || !positive(c.Close) {
			continue
		}
		if c.Timestamp <= 0 {
			continue
		}
		if c.Volume <= 0 || math.IsNaN(c.Volume) || math.IsInf(c.Volume, 0) {
			c.Volume = DefaultVolume
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })

	deduped := out[:0]
	for i, c := range out {
		if i > 0 && c.Timestamp == deduped[len(deduped)-1].Timestamp {
			continue
		}
		deduped = append(deduped, c)
	}
	return deduped
}

// ParseDecimal parses provider numeric strings such as "1.0842" or "0.12%".
func ParseDecimal(s string) (float64, error) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty number", ErrUnexpectedShape)
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite number %q", ErrUnexpectedShape, s)
	}
	return v, nil
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// ValidateQuote rejects quotes without a positive finite price.
func ValidateQuote(q *Quote) error {
	if q == nil {
		return fmt.Errorf("%w: nil quote", ErrInsufficientData)
	}
	if !positive(q.Price) {
		return fmt.Errorf("%w: price %v", ErrInsufficientData, q.Price)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
