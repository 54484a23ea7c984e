package backfill

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CryptoPulse/internal/calculator"
	"CryptoPulse/internal/collector"
	"CryptoPulse/internal/metrics"
	"CryptoPulse/internal/model"
	"CryptoPulse/internal/store"

	"github.com/rs/zerolog"
)

// Options tune the historical window and pacing.
type Options struct {
	Delay         time.Duration
	LookbackHours int
	Interval      string
	Now           func() time.Time
}

// Loader seeds an empty store with recent candles for every tracked symbol.
type Loader struct {
	fetcher *collector.Fetcher
	client  collector.MarketClient
	store   store.PriceStore
	symbols []string
	opts    Options
	metrics *metrics.Recorder
	log     zerolog.Logger

	once      sync.Once
	checkOnce sync.Once
	count     int64
	needed    bool
	checkErr  error
}

// NewLoader creates a Loader. Zero-valued options fall back to a 24 hour
// window of 1h candles with no pause between symbols.
func NewLoader(fetcher *collector.Fetcher, client collector.MarketClient, st store.PriceStore, symbols []string,
	opts Options, rec *metrics.Recorder, log zerolog.Logger) *Loader {
	if opts.LookbackHours <= 0 {
		opts.LookbackHours = 24
	}
	if opts.Interval == "" {
		opts.Interval = "1h"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Loader{
		fetcher: fetcher,
		client:  client,
		store:   st,
		symbols: symbols,
		opts:    opts,
		metrics: rec,
		log:     log.With().Str("component", "backfill").Logger(),
	}
}

// Run loads history once per process, and only if the store holds no points.
// Later calls are no-ops. It returns the number of historical points written.
func (l *Loader) Run(ctx context.Context) (int, error) {
	var (
		written int
		err     error
	)
	l.once.Do(func() {
		written, err = l.run(ctx)
	})
	return written, err
}

// Check reports whether the store was empty when first asked. The answer is
// taken once and reused by Run, so points written after the first call do not
// cancel a pending backfill.
func (l *Loader) Check(ctx context.Context) (bool, error) {
	l.checkOnce.Do(func() {
		count, err := l.store.CountPrices(ctx)
		if err != nil {
			l.checkErr = fmt.Errorf("count prices: %w", err)
			return
		}
		l.count = count
		l.needed = count == 0
	})
	return l.needed, l.checkErr
}

func (l *Loader) run(ctx context.Context) (int, error) {
	needed, err := l.Check(ctx)
	if err != nil {
		return 0, err
	}
	if !needed {
		l.log.Info().Int64("count", l.count).Msg("store already populated, skipping backfill")
		return 0, nil
	}

	l.log.Info().Int("symbols", len(l.symbols)).Msg("store empty, loading history")
	start := time.Now()
	total := 0
	for i, sym := range l.symbols {
		if i > 0 && !l.pause(ctx) {
			l.log.Warn().Msg("backfill cancelled")
			break
		}
		n, err := l.loadSymbol(ctx, sym)
		if err != nil {
			l.log.Error().Err(err).Str("symbol", sym).Msg("backfill failed for symbol")
			l.metrics.RecordSymbolFailure(metrics.JobBackfill, sym)
			continue
		}
		l.log.Info().Str("symbol", sym).Int("points", n).Msg("history loaded")
		total += n
	}
	l.metrics.RecordJobRun(metrics.JobBackfill, time.Since(start).Seconds())
	l.log.Info().Int("points", total).Msg("backfill complete")
	return total, nil
}

func (l *Loader) loadSymbol(ctx context.Context, symbol string) (int, error) {
	if _, err := l.fetcher.Fetch(ctx, symbol); err != nil {
		return 0, fmt.Errorf("seed current price: %w", err)
	}

	end := l.opts.Now()
	begin := end.Add(-time.Duration(l.opts.LookbackHours) * time.Hour)
	candles, err := l.client.Klines(ctx, symbol, l.opts.Interval, begin, end, l.opts.LookbackHours)
	if err != nil {
		return 0, fmt.Errorf("klines: %w", err)
	}
	if len(candles) == 0 {
		return 0, nil
	}

	points := make([]*model.PricePoint, 0, len(candles))
	for _, c := range candles {
		p, err := CandleToPoint(symbol, c)
		if err != nil {
			return 0, err
		}
		points = append(points, p)
	}
	if err := l.store.SavePrices(ctx, points); err != nil {
		return 0, fmt.Errorf("save history: %w", err)
	}
	return len(points), nil
}

// pause waits the configured delay; it reports false if ctx ended first.
func (l *Loader) pause(ctx context.Context) bool {
	if l.opts.Delay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(l.opts.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// CandleToPoint maps one candle onto a price point stamped at its open time.
func CandleToPoint(symbol string, c model.Candle) (*model.PricePoint, error) {
	change, err := calculator.PercentChange(c.Open, c.Close)
	if err != nil {
		return nil, fmt.Errorf("candle %s at %s: %v: %w", symbol, c.OpenTime.Format(time.RFC3339), err, model.ErrUpstreamFailure)
	}
	return &model.PricePoint{
		Symbol:                symbol,
		Price:                 c.Close,
		Volume24h:             c.Volume,
		High24h:               c.High,
		Low24h:                c.Low,
		PriceChangePercent24h: change,
		MarketCapApprox:       model.ApproxMarketCap(c.Close, c.Volume),
		Timestamp:             c.OpenTime.UTC(),
	}, nil
}
