package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle represents a single candlestick bar from the upstream API.
type Candle struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// Ticker is the 24-hour rolling snapshot returned by the upstream API.
type Ticker struct {
	Symbol             string
	LastPrice          decimal.Decimal
	Volume             decimal.Decimal
	HighPrice          decimal.Decimal
	LowPrice           decimal.Decimal
	PriceChangePercent decimal.Decimal
}
