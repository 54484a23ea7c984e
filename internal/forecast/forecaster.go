package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CryptoPulse/internal/batch"
	"CryptoPulse/internal/metrics"
	"CryptoPulse/internal/model"
	"CryptoPulse/internal/store"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Horizon is one forward offset and the transform applied to the statistics.
type Horizon struct {
	Days       int
	PriceScale decimal.Decimal
	WidthScale decimal.Decimal
}

// Horizons are ordered by distance; WidthScale is non-decreasing.
var Horizons = []Horizon{
	{Days: 1, PriceScale: decimal.NewFromInt(1), WidthScale: decimal.NewFromInt(1)},
	{Days: 7, PriceScale: decimal.RequireFromString("1.01"), WidthScale: decimal.RequireFromString("1.2")},
	{Days: 30, PriceScale: decimal.RequireFromString("1.03"), WidthScale: decimal.RequireFromString("1.5")},
}

// Accuracy is the fixed score attached to every record.
var Accuracy = decimal.RequireFromString("0.85")

// Forecaster derives fixed-horizon forecasts from archived price statistics.
type Forecaster struct {
	engine  batch.Engine
	store   store.ForecastStore
	now     func() time.Time
	metrics *metrics.Recorder
	log     zerolog.Logger
}

// NewForecaster creates a Forecaster. now may be nil.
func NewForecaster(engine batch.Engine, st store.ForecastStore, now func() time.Time, rec *metrics.Recorder, log zerolog.Logger) *Forecaster {
	if now == nil {
		now = time.Now
	}
	return &Forecaster{
		engine:  engine,
		store:   st,
		now:     now,
		metrics: rec,
		log:     log.With().Str("component", "forecast").Str("engine", engine.Name()).Logger(),
	}
}

// Forecast runs one load-aggregate-derive-persist cycle for symbol. When the
// archive holds no rows for symbol it logs and returns no records and a nil
// error. Aggregate and persist failures wrap model.ErrForecastFailed.
func (f *Forecaster) Forecast(ctx context.Context, symbol string) ([]*model.ForecastRecord, error) {
	stats, err := f.engine.Aggregate(ctx, symbol)
	if errors.Is(err, model.ErrNoDataAvailable) {
		f.log.Warn().Str("symbol", symbol).Msg("no archived data, no forecast produced")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w: %w", symbol, model.ErrForecastFailed, err)
	}

	records := Derive(stats, f.now().UTC())
	if err := f.store.SaveForecasts(ctx, records); err != nil {
		return nil, fmt.Errorf("persist %s: %w: %w", symbol, model.ErrForecastFailed, err)
	}

	f.metrics.RecordForecasts(symbol, len(records))
	f.log.Info().
		Str("symbol", symbol).
		Int64("rows", stats.Count).
		Str("mean", stats.Mean.String()).
		Str("stddev", stats.StdDev.String()).
		Msg("forecast stored")
	return records, nil
}

// RunAll forecasts each symbol in order, logging per-symbol failures without
// stopping. It returns the records produced per symbol.
func (f *Forecaster) RunAll(ctx context.Context, symbols []string) map[string][]*model.ForecastRecord {
	start := time.Now()
	out := make(map[string][]*model.ForecastRecord, len(symbols))
	for _, sym := range symbols {
		if ctx.Err() != nil {
			f.log.Warn().Err(ctx.Err()).Msg("forecast run cancelled")
			break
		}
		recs, err := f.Forecast(ctx, sym)
		if err != nil {
			f.log.Error().Err(err).Str("symbol", sym).Msg("forecast failed for symbol")
			f.metrics.RecordSymbolFailure(metrics.JobForecast, sym)
			continue
		}
		if len(recs) > 0 {
			out[sym] = recs
		}
	}
	f.metrics.RecordJobRun(metrics.JobForecast, time.Since(start).Seconds())
	return out
}

// Derive applies the horizon transforms to stats, stamping records at now.
func Derive(stats model.PriceStats, now time.Time) []*model.ForecastRecord {
	records := make([]*model.ForecastRecord, 0, len(Horizons))
	for _, h := range Horizons {
		records = append(records, &model.ForecastRecord{
			Symbol:             stats.Symbol,
			PredictedPrice:     stats.Mean.Mul(h.PriceScale),
			ConfidenceInterval: stats.StdDev.Mul(h.WidthScale),
			TargetDate:         now.AddDate(0, 0, h.Days),
			CreatedAt:          now,
			Model:              model.ForecastModelSMA,
			Accuracy:           Accuracy,
		})
	}
	return records
}
