package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one normalized market snapshot for a symbol.
type PricePoint struct {
	ID                    int64           `json:"id"`
	Symbol                string          `json:"symbol"`
	Price                 decimal.Decimal `json:"price"`
	Volume24h             decimal.Decimal `json:"volume24h"`
	High24h               decimal.Decimal `json:"high24h"`
	Low24h                decimal.Decimal `json:"low24h"`
	PriceChangePercent24h decimal.Decimal `json:"priceChangePercent24h"`
	// MarketCapApprox is price × volume / 1000, not a real capitalization.
	MarketCapApprox decimal.Decimal `json:"marketCap"`
	Timestamp       time.Time       `json:"timestamp"`
}

var marketCapDivisor = decimal.NewFromInt(1000)

// ApproxMarketCap derives the placeholder market cap from price and volume.
// The quotient keeps the scale of the product, rounded half-up.
func ApproxMarketCap(price, volume decimal.Decimal) decimal.Decimal {
	product := price.Mul(volume)
	var scale int32
	if exp := product.Exponent(); exp < 0 {
		scale = -exp
	}
	return product.DivRound(marketCapDivisor, scale)
}
