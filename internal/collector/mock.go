package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CryptoPulse/internal/model"

	"github.com/shopspring/decimal"
)

// MockClient returns controllable fixed data for development and testing.
type MockClient struct {
	Price   decimal.Decimal
	Candles []model.Candle
	// Fail lists symbols whose calls return ErrUpstreamFailure.
	Fail map[string]bool

	mu     sync.Mutex
	calls  map[string]int
	klines map[string]int
}

func (m *MockClient) Name() string { return "mock" }

func (m *MockClient) Ticker24h(_ context.Context, symbol string) (*model.Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[symbol]++
	if m.Fail[symbol] {
		return nil, fmt.Errorf("mock ticker %s: %w", symbol, model.ErrUpstreamFailure)
	}
	p := m.Price
	return &model.Ticker{
		Symbol:             symbol,
		LastPrice:          p,
		Volume:             decimal.NewFromInt(1000),
		HighPrice:          p.Mul(decimal.RequireFromString("1.02")),
		LowPrice:           p.Mul(decimal.RequireFromString("0.98")),
		PriceChangePercent: decimal.RequireFromString("0.5"),
	}, nil
}

func (m *MockClient) Klines(_ context.Context, symbol, _ string, start, _ time.Time, limit int) ([]model.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.klines == nil {
		m.klines = make(map[string]int)
	}
	m.klines[symbol]++
	if m.Fail[symbol] {
		return nil, fmt.Errorf("mock klines %s: %w", symbol, model.ErrUpstreamFailure)
	}
	if m.Candles != nil {
		return m.Candles, nil
	}
	return generateMockCandles(m.Price, start, limit), nil
}

// TickerCalls returns how many ticker requests were made for symbol.
func (m *MockClient) TickerCalls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

// KlineCalls returns how many candle requests were made for symbol.
func (m *MockClient) KlineCalls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.klines[symbol]
}

func generateMockCandles(base decimal.Decimal, start time.Time, count int) []model.Candle {
	step := decimal.RequireFromString("0.001")
	out := make([]model.Candle, count)
	for i := 0; i < count; i++ {
		p := base.Mul(decimal.NewFromInt(1).Add(step.Mul(decimal.NewFromInt(int64(i - count/2)))))
		out[i] = model.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     p.Mul(decimal.RequireFromString("0.999")),
			High:     p.Mul(decimal.RequireFromString("1.005")),
			Low:      p.Mul(decimal.RequireFromString("0.995")),
			Close:    p,
			Volume:   decimal.NewFromInt(1000),
		}
	}
	return out
}
