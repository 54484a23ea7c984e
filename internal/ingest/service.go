package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CryptoPulse/internal/metrics"
	"CryptoPulse/internal/model"
	"CryptoPulse/internal/store"

	"github.com/rs/zerolog"
)

// PointFetcher fetches and persists one snapshot for a symbol.
type PointFetcher interface {
	Fetch(ctx context.Context, symbol string) (*model.PricePoint, error)
}

// Service drives periodic ingestion and serves latest-price reads.
type Service struct {
	fetcher PointFetcher
	store   store.PriceStore
	symbols []string
	metrics *metrics.Recorder
	log     zerolog.Logger
}

// NewService creates an ingestion service for the given tracked symbols.
func NewService(fetcher PointFetcher, st store.PriceStore, symbols []string, rec *metrics.Recorder, log zerolog.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		store:   st,
		symbols: symbols,
		metrics: rec,
		log:     log.With().Str("component", "ingest").Logger(),
	}
}

// Symbols returns the tracked symbols.
func (s *Service) Symbols() []string { return s.symbols }

// RunAll fetches every tracked symbol once, in order. A symbol's failure is
// logged and counted; it never stops the remaining symbols. It returns the
// number of symbols that succeeded.
func (s *Service) RunAll(ctx context.Context) int {
	start := time.Now()
	ok := 0
	for _, sym := range s.symbols {
		if ctx.Err() != nil {
			s.log.Warn().Err(ctx.Err()).Msg("ingest run cancelled")
			break
		}
		p, err := s.fetcher.Fetch(ctx, sym)
		if err != nil {
			s.log.Error().Err(err).Str("symbol", sym).Msg("ingest failed for symbol")
			s.metrics.RecordSymbolFailure(metrics.JobIngest, sym)
			continue
		}
		price, _ := p.Price.Float64()
		s.metrics.RecordLastPrice(sym, price)
		ok++
	}
	s.metrics.RecordJobRun(metrics.JobIngest, time.Since(start).Seconds())
	s.log.Info().Int("ok", ok).Int("total", len(s.symbols)).Dur("took", time.Since(start)).Msg("ingest run complete")
	return ok
}

// Refresh performs one synchronous fetch for symbol and reports its failure.
func (s *Service) Refresh(ctx context.Context, symbol string) (*model.PricePoint, error) {
	p, err := s.fetcher.Fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}
	price, _ := p.Price.Float64()
	s.metrics.RecordLastPrice(symbol, price)
	return p, nil
}

// GetLatest returns the most recent stored point for symbol. When the store
// has none it refreshes once; a failed refresh is reported as
// model.ErrNoDataAvailable.
func (s *Service) GetLatest(ctx context.Context, symbol string) (*model.PricePoint, error) {
	p, err := s.store.LatestPrice(ctx, symbol)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, model.ErrNoDataAvailable) {
		return nil, err
	}

	s.log.Info().Str("symbol", symbol).Msg("no stored price, fetching on read")
	p, err = s.Refresh(ctx, symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("fetch on read failed")
		return nil, fmt.Errorf("latest price for %s: %v: %w", symbol, err, model.ErrNoDataAvailable)
	}
	return p, nil
}
