package market

import "strings"

// MaxRelevantNews caps the filtered feed.
const MaxRelevantNews = 5

var macroKeywords = []string{"forex", "fed", "ecb", "central bank"}

// FilterRelevantNews keeps items mentioning the symbol's currencies or a
// macro keyword, in feed order, up to MaxRelevantNews.
func FilterRelevantNews(items []NewsItem, symbol string) []NewsItem {
	if len(items) == 0 {
		return nil
	}
	terms := relevanceTerms(symbol)
	out := make([]NewsItem, 0, MaxRelevantNews)
	for _, item := range items {
		text := strings.ToLower(item.Summary + " " + item.Headline)
		for _, term := range terms {
			if strings.Contains(text, term) {
				out = append(out, item)
				break
			}
		}
		if len(out) == MaxRelevantNews {
			break
		}
	}
	return out
}

func relevanceTerms(symbol string) []string {
	terms := make([]string, 0, len(macroKeywords)+2)
	if base, quote, ok := SplitPair(symbol); ok {
		terms = append(terms, strings.ToLower(base), strings.ToLower(quote))
	} else if s := NormalizeSymbol(symbol); s != "" {
		terms = append(terms, strings.ToLower(s))
	}
	return append(terms, macroKeywords...)
}
