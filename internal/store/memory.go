package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"CryptoPulse/internal/model"
)

// MemoryStore is an in-process Store used when no database path is configured
// and in tests.
type MemoryStore struct {
	mu        sync.RWMutex
	prices    []*model.PricePoint
	forecasts []*model.ForecastRecord
	nextPrice int64
	nextFcst  int64
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) SavePrice(_ context.Context, p *model.PricePoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPrice++
	p.ID = m.nextPrice
	cp := *p
	m.prices = append(m.prices, &cp)
	return nil
}

func (m *MemoryStore) SavePrices(ctx context.Context, ps []*model.PricePoint) error {
	for _, p := range ps {
		if err := m.SavePrice(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) LatestPrice(ctx context.Context, symbol string) (*model.PricePoint, error) {
	ps, _ := m.RecentPrices(ctx, symbol, 1)
	if len(ps) == 0 {
		return nil, fmt.Errorf("latest price for %s: %w", symbol, model.ErrNoDataAvailable)
	}
	return ps[0], nil
}

func (m *MemoryStore) RecentPrices(_ context.Context, symbol string, limit int) ([]*model.PricePoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.PricePoint
	for _, p := range m.prices {
		if p.Symbol == symbol {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) PricesInRange(_ context.Context, symbol string, from, to time.Time) ([]*model.PricePoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.PricePoint
	for _, p := range m.prices {
		if p.Symbol == symbol && !p.Timestamp.Before(from) && !p.Timestamp.After(to) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (m *MemoryStore) Symbols(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, p := range m.prices {
		if _, ok := seen[p.Symbol]; !ok {
			seen[p.Symbol] = struct{}{}
			out = append(out, p.Symbol)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) CountPrices(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.prices)), nil
}

func (m *MemoryStore) SaveForecasts(_ context.Context, fs []*model.ForecastRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range fs {
		m.nextFcst++
		f.ID = m.nextFcst
		cp := *f
		m.forecasts = append(m.forecasts, &cp)
	}
	return nil
}

func (m *MemoryStore) LatestForecast(_ context.Context, symbol string) (*model.ForecastRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *model.ForecastRecord
	for _, f := range m.forecasts {
		if f.Symbol != symbol {
			continue
		}
		if latest == nil || !f.CreatedAt.Before(latest.CreatedAt) {
			latest = f
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("latest forecast for %s: %w", symbol, model.ErrNotFound)
	}
	cp := *latest
	return &cp, nil
}

func (m *MemoryStore) Forecasts(_ context.Context, symbol string) ([]*model.ForecastRecord, error) {
	return m.filterForecasts(symbol, func(*model.ForecastRecord) bool { return true }), nil
}

func (m *MemoryStore) ForecastsInRange(_ context.Context, symbol string, from, to time.Time) ([]*model.ForecastRecord, error) {
	return m.filterForecasts(symbol, func(f *model.ForecastRecord) bool {
		return !f.TargetDate.Before(from) && !f.TargetDate.After(to)
	}), nil
}

func (m *MemoryStore) filterForecasts(symbol string, keep func(*model.ForecastRecord) bool) []*model.ForecastRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.ForecastRecord
	for _, f := range m.forecasts {
		if f.Symbol == symbol && keep(f) {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TargetDate.Equal(out[j].TargetDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].TargetDate.Before(out[j].TargetDate)
	})
	return out
}

func (m *MemoryStore) Close() error { return nil }
