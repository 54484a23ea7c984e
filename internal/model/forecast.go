package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ForecastModelSMA identifies the moving-average placeholder forecaster.
const ForecastModelSMA = "SimpleMovingAverage"

// ForecastRecord is one point forecast for a symbol at a fixed horizon.
type ForecastRecord struct {
	ID                 int64           `json:"id"`
	Symbol             string          `json:"symbol"`
	PredictedPrice     decimal.Decimal `json:"predictedPrice"`
	ConfidenceInterval decimal.Decimal `json:"confidenceInterval"`
	TargetDate         time.Time       `json:"targetDate"`
	CreatedAt          time.Time       `json:"createdAt"`
	Model              string          `json:"model"`
	Accuracy           decimal.Decimal `json:"accuracy"`
}

// Horizon returns the forward offset between creation and target.
func (f ForecastRecord) Horizon() time.Duration {
	return f.TargetDate.Sub(f.CreatedAt)
}

// PriceStats are the aggregate statistics the forecaster derives from.
type PriceStats struct {
	Symbol string
	Count  int64
	Mean   decimal.Decimal
	Max    decimal.Decimal
	Min    decimal.Decimal
	StdDev decimal.Decimal
}
