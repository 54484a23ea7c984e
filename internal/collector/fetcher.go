package collector

import (
	"context"
	"fmt"
	"time"

	"CryptoPulse/internal/model"
	"CryptoPulse/internal/store"

	"github.com/rs/zerolog"
)

// Fetcher turns one upstream ticker call into a stored price point.
type Fetcher struct {
	client MarketClient
	store  store.PriceStore
	now    func() time.Time
	log    zerolog.Logger
}

// NewFetcher creates a Fetcher. now may be nil, in which case time.Now is used.
func NewFetcher(client MarketClient, st store.PriceStore, now func() time.Time, log zerolog.Logger) *Fetcher {
	if now == nil {
		now = time.Now
	}
	return &Fetcher{
		client: client,
		store:  st,
		now:    now,
		log:    log.With().Str("component", "fetcher").Str("source", client.Name()).Logger(),
	}
}

// Fetch retrieves the 24h snapshot for symbol, persists it and returns it.
// It makes exactly one upstream call and does not retry.
func (f *Fetcher) Fetch(ctx context.Context, symbol string) (*model.PricePoint, error) {
	t, err := f.client.Ticker24h(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	p := &model.PricePoint{
		Symbol:                symbol,
		Price:                 t.LastPrice,
		Volume24h:             t.Volume,
		High24h:               t.HighPrice,
		Low24h:                t.LowPrice,
		PriceChangePercent24h: t.PriceChangePercent,
		MarketCapApprox:       model.ApproxMarketCap(t.LastPrice, t.Volume),
		Timestamp:             f.now().UTC(),
	}
	if err := f.store.SavePrice(ctx, p); err != nil {
		return nil, fmt.Errorf("save %s: %w", symbol, err)
	}

	f.log.Debug().Str("symbol", symbol).Str("price", p.Price.String()).Msg("price fetched")
	return p, nil
}
