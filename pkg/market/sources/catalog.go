// Package sources wires the concrete provider adapters into a market.Catalog.
package sources

import (
	"marketlens/pkg/market"
	"marketlens/pkg/market/sources/alphavantage"
	"marketlens/pkg/market/sources/finnhub"
	"marketlens/pkg/market/sources/polygon"
	"marketlens/pkg/market/sources/twelvedata"
)

// Catalog returns the builders for every supported provider type.
func Catalog() market.Catalog {
	return market.Catalog{
		finnhub.Name:      finnhub.Build,
		alphavantage.Name: alphavantage.Build,
		twelvedata.Name:   twelvedata.Build,
		polygon.Name:      polygon.Build,
	}
}
