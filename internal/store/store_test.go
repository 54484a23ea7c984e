package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"CryptoPulse/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func point(symbol string, price string, at time.Time) *model.PricePoint {
	p := decimal.RequireFromString(price)
	vol := decimal.RequireFromString("10")
	return &model.PricePoint{
		Symbol:                symbol,
		Price:                 p,
		Volume24h:             vol,
		High24h:               p,
		Low24h:                p,
		PriceChangePercent24h: decimal.RequireFromString("1.2345"),
		MarketCapApprox:       model.ApproxMarketCap(p, vol),
		Timestamp:             at,
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"sqlite": sq,
		"memory": NewMemoryStore(),
	}
}

func TestPrices(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.LatestPrice(ctx, "BTCUSDT")
			assert.ErrorIs(t, err, model.ErrNoDataAvailable)

			require.NoError(t, s.SavePrice(ctx, point("BTCUSDT", "100.5", base)))
			require.NoError(t, s.SavePrices(ctx, []*model.PricePoint{
				point("BTCUSDT", "101.25", base.Add(time.Minute)),
				point("BTCUSDT", "99", base.Add(2*time.Minute)),
				point("ETHUSDT", "2000", base),
			}))

			n, err := s.CountPrices(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(4), n)

			latest, err := s.LatestPrice(ctx, "BTCUSDT")
			require.NoError(t, err)
			assert.True(t, latest.Price.Equal(decimal.NewFromInt(99)))
			assert.True(t, latest.Timestamp.Equal(base.Add(2*time.Minute)))
			assert.NotZero(t, latest.ID)

			recent, err := s.RecentPrices(ctx, "BTCUSDT", 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "99", recent[0].Price.String())
			assert.Equal(t, "101.25", recent[1].Price.String())

			inRange, err := s.PricesInRange(ctx, "BTCUSDT", base, base.Add(time.Minute))
			require.NoError(t, err)
			require.Len(t, inRange, 2)
			assert.Equal(t, "100.5", inRange[0].Price.String())
			assert.Equal(t, "1", inRange[0].MarketCapApprox.String())
			assert.Equal(t, "1.2345", inRange[0].PriceChangePercent24h.String())

			syms, err := s.Symbols(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, syms)
		})
	}
}

func TestForecasts(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.LatestForecast(ctx, "BTCUSDT")
			assert.ErrorIs(t, err, model.ErrNotFound)

			mk := func(days int, created time.Time) *model.ForecastRecord {
				return &model.ForecastRecord{
					Symbol:             "BTCUSDT",
					PredictedPrice:     decimal.NewFromInt(int64(100 + days)),
					ConfidenceInterval: decimal.NewFromInt(5),
					TargetDate:         created.AddDate(0, 0, days),
					CreatedAt:          created,
					Model:              model.ForecastModelSMA,
				}
			}

			first := []*model.ForecastRecord{mk(30, base), mk(1, base), mk(7, base)}
			require.NoError(t, s.SaveForecasts(ctx, first))
			second := base.Add(time.Hour)
			require.NoError(t, s.SaveForecasts(ctx, []*model.ForecastRecord{mk(1, second), mk(7, second), mk(30, second)}))

			all, err := s.Forecasts(ctx, "BTCUSDT")
			require.NoError(t, err)
			require.Len(t, all, 6)
			for i := 1; i < len(all); i++ {
				assert.False(t, all[i].TargetDate.Before(all[i-1].TargetDate))
			}

			latest, err := s.LatestForecast(ctx, "BTCUSDT")
			require.NoError(t, err)
			assert.True(t, latest.CreatedAt.Equal(second))
			assert.Equal(t, model.ForecastModelSMA, latest.Model)

			ranged, err := s.ForecastsInRange(ctx, "BTCUSDT", base, base.AddDate(0, 0, 7))
			require.NoError(t, err)
			assert.Len(t, ranged, 3)

			other, err := s.Forecasts(ctx, "ETHUSDT")
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	const (
		writers = 4
		readers = 4
		perG    = 50
	)
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			errs := make(chan error, (writers+2*readers)*perG)

			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					sym := fmt.Sprintf("SYM%d", w)
					for i := 0; i < perG; i++ {
						if err := s.SavePrice(ctx, point(sym, "100", base.Add(time.Duration(i)*time.Second))); err != nil {
							errs <- err
						}
					}
				}(w)
			}
			for r := 0; r < readers; r++ {
				wg.Add(1)
				go func(r int) {
					defer wg.Done()
					sym := fmt.Sprintf("SYM%d", r%writers)
					for i := 0; i < perG; i++ {
						if _, err := s.PricesInRange(ctx, sym, base, base.Add(time.Hour)); err != nil {
							errs <- err
						}
						if _, err := s.CountPrices(ctx); err != nil {
							errs <- err
						}
					}
				}(r)
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				assert.NoError(t, err)
			}
			n, err := s.CountPrices(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(writers*perG), n)

			got, err := s.PricesInRange(ctx, "SYM0", base, base.Add(time.Hour))
			require.NoError(t, err)
			assert.Len(t, got, perG)
		})
	}
}
