package llm

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// jsonObject spans from the first '{' to the last '}', which also covers
// replies wrapped in markdown code fences.
var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

var leadingInt = regexp.MustCompile(`^[+-]?\d+`)

// ParseDecision extracts the decision object from free-form model text.
// decision, confidence and reason are required. A confidencePercentage that
// is not an integer in [0,100] is dropped.
func ParseDecision(text string) (*Decision, error) {
	raw := jsonObject.FindString(text)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformedDecision)
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedDecision)
	}

	doc := gjson.Parse(raw)
	d := &Decision{
		Decision:   strings.TrimSpace(doc.Get("decision").String()),
		Confidence: strings.TrimSpace(doc.Get("confidence").String()),
		Duration:   strings.TrimSpace(doc.Get("duration").String()),
		Reason:     strings.TrimSpace(doc.Get("reason").String()),
	}
	if d.Decision == "" || d.Confidence == "" || d.Reason == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrMalformedDecision)
	}
	if pct := doc.Get("confidencePercentage"); pct.Exists() {
		d.ConfidencePercentage = percentage(pct)
	}
	return d, nil
}

// percentage truncates numbers and reads the leading integer of strings,
// so "85%" yields 85.
func percentage(v gjson.Result) *int {
	var n int
	switch v.Type {
	case gjson.Number:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		n = int(math.Trunc(f))
	case gjson.String:
		digits := leadingInt.FindString(strings.TrimSpace(v.Str))
		if digits == "" {
			return nil
		}
		parsed, err := strconv.Atoi(digits)
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	if n < 0 || n > 100 {
		return nil
	}
	return &n
}
