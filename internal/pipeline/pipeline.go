// Package pipeline exposes the operations callers outside the scheduled jobs
// may invoke: latest and forced reads of prices and forecasts, plus the store
// read contract.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CryptoPulse/internal/forecast"
	"CryptoPulse/internal/ingest"
	"CryptoPulse/internal/model"
	"CryptoPulse/internal/store"
)

const (
	// DefaultRecentLimit caps RecentPrices when the caller gives no limit.
	DefaultRecentLimit = 100
	// DefaultHistory is the span of PriceHistory when no bounds are given.
	DefaultHistory = 24 * time.Hour
	// DefaultForecastSpan is the span of ForecastsInRange when no bounds are given.
	DefaultForecastSpan = 30 * 24 * time.Hour
)

// ErrInvalidRange is returned when a range's start is after its end.
var ErrInvalidRange = errors.New("invalid time range")

// Pipeline wires the ingest service, forecaster and store behind one facade.
type Pipeline struct {
	ingest     *ingest.Service
	forecaster *forecast.Forecaster
	store      store.Store
	now        func() time.Time
}

// New creates a Pipeline. now may be nil.
func New(svc *ingest.Service, fc *forecast.Forecaster, st store.Store, now func() time.Time) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{ingest: svc, forecaster: fc, store: st, now: now}
}

// TrackedSymbols returns the configured symbols.
func (p *Pipeline) TrackedSymbols() []string { return p.ingest.Symbols() }

// GetLatestPrice returns the newest point, fetching once if none is stored.
func (p *Pipeline) GetLatestPrice(ctx context.Context, symbol string) (*model.PricePoint, error) {
	return p.ingest.GetLatest(ctx, symbol)
}

// RefreshPrice forces one upstream fetch for symbol.
func (p *Pipeline) RefreshPrice(ctx context.Context, symbol string) (*model.PricePoint, error) {
	return p.ingest.Refresh(ctx, symbol)
}

// GetLatestForecast returns the most recently created forecast for symbol.
func (p *Pipeline) GetLatestForecast(ctx context.Context, symbol string) (*model.ForecastRecord, error) {
	return p.store.LatestForecast(ctx, symbol)
}

// ForceForecast runs the forecaster for symbol now.
func (p *Pipeline) ForceForecast(ctx context.Context, symbol string) ([]*model.ForecastRecord, error) {
	return p.forecaster.Forecast(ctx, symbol)
}

// Symbols lists the distinct symbols in the store.
func (p *Pipeline) Symbols(ctx context.Context) ([]string, error) {
	return p.store.Symbols(ctx)
}

// RecentPrices returns up to limit points newest first. A non-positive limit
// means DefaultRecentLimit.
func (p *Pipeline) RecentPrices(ctx context.Context, symbol string, limit int) ([]*model.PricePoint, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return p.store.RecentPrices(ctx, symbol, limit)
}

// PriceHistory returns points in [from, to] oldest first. A zero to means now
// and a zero from means DefaultHistory before to.
func (p *Pipeline) PriceHistory(ctx context.Context, symbol string, from, to time.Time) ([]*model.PricePoint, error) {
	if to.IsZero() {
		to = p.now()
	}
	if from.IsZero() {
		from = to.Add(-DefaultHistory)
	}
	if from.After(to) {
		return nil, fmt.Errorf("%s after %s: %w", from.Format(time.RFC3339), to.Format(time.RFC3339), ErrInvalidRange)
	}
	return p.store.PricesInRange(ctx, symbol, from, to)
}

// Forecasts returns every stored forecast for symbol by target date.
func (p *Pipeline) Forecasts(ctx context.Context, symbol string) ([]*model.ForecastRecord, error) {
	return p.store.Forecasts(ctx, symbol)
}

// ForecastsInRange returns forecasts with target date in [from, to]. A zero
// from means now and a zero to means DefaultForecastSpan after from.
func (p *Pipeline) ForecastsInRange(ctx context.Context, symbol string, from, to time.Time) ([]*model.ForecastRecord, error) {
	if from.IsZero() {
		from = p.now()
	}
	if to.IsZero() {
		to = from.Add(DefaultForecastSpan)
	}
	if from.After(to) {
		return nil, fmt.Errorf("%s after %s: %w", from.Format(time.RFC3339), to.Format(time.RFC3339), ErrInvalidRange)
	}
	return p.store.ForecastsInRange(ctx, symbol, from, to)
}
