package store

import (
	"context"
	"time"

	"CryptoPulse/internal/model"
)

// PriceStore is the append-only time series of price points.
type PriceStore interface {
	SavePrice(ctx context.Context, p *model.PricePoint) error
	SavePrices(ctx context.Context, ps []*model.PricePoint) error
	// LatestPrice returns model.ErrNoDataAvailable when the symbol has no points.
	LatestPrice(ctx context.Context, symbol string) (*model.PricePoint, error)
	// RecentPrices returns up to limit points, newest first.
	RecentPrices(ctx context.Context, symbol string, limit int) ([]*model.PricePoint, error)
	// PricesInRange returns points with from <= timestamp <= to, oldest first.
	PricesInRange(ctx context.Context, symbol string, from, to time.Time) ([]*model.PricePoint, error)
	Symbols(ctx context.Context) ([]string, error)
	CountPrices(ctx context.Context) (int64, error)
}

// ForecastStore holds forecast records. Records are never overwritten.
type ForecastStore interface {
	SaveForecasts(ctx context.Context, fs []*model.ForecastRecord) error
	// LatestForecast returns model.ErrNotFound when the symbol has no forecasts.
	LatestForecast(ctx context.Context, symbol string) (*model.ForecastRecord, error)
	// Forecasts returns all records for symbol ordered by target date.
	Forecasts(ctx context.Context, symbol string) ([]*model.ForecastRecord, error)
	// ForecastsInRange returns records with from <= targetDate <= to ordered by target date.
	ForecastsInRange(ctx context.Context, symbol string, from, to time.Time) ([]*model.ForecastRecord, error)
}

// Store is the full persistence contract used by the pipeline.
type Store interface {
	PriceStore
	ForecastStore
	Close() error
}
