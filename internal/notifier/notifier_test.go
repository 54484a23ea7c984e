package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"CryptoPulse/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T, h http.HandlerFunc) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("TOKEN", "42", "", zerolog.Nop())
	n.APIBase = srv.URL
	return n
}

func TestSend(t *testing.T) {
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "42", payload["chat_id"])
		assert.Equal(t, "hello", payload["text"])
		assert.Equal(t, "HTML", payload["parse_mode"])
	})
	assert.NoError(t, n.Send(context.Background(), "hello"))
}

func TestSendWithRetry(t *testing.T) {
	var calls int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
	})
	require.NoError(t, n.SendWithRetry(context.Background(), "x", 3, time.Millisecond))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSendWithRetryExhausted(t *testing.T) {
	var calls int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	err := n.SendWithRetry(context.Background(), "x", 2, time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

type fakeReader struct {
	price     *model.PricePoint
	forecasts []*model.ForecastRecord
}

func (f *fakeReader) GetLatestPrice(context.Context, string) (*model.PricePoint, error) {
	if f.price == nil {
		return nil, model.ErrNoDataAvailable
	}
	return f.price, nil
}

func (f *fakeReader) GetLatestForecast(context.Context, string) (*model.ForecastRecord, error) {
	if len(f.forecasts) == 0 {
		return nil, model.ErrNotFound
	}
	latest := f.forecasts[0]
	for _, r := range f.forecasts {
		if r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	return latest, nil
}

func (f *fakeReader) Forecasts(context.Context, string) ([]*model.ForecastRecord, error) {
	return f.forecasts, nil
}

func (f *fakeReader) TrackedSymbols() []string { return []string{"BTCUSDT", "ETHUSDT"} }

func record(days int, created time.Time, price string) *model.ForecastRecord {
	return &model.ForecastRecord{
		Symbol:             "BTCUSDT",
		PredictedPrice:     decimal.RequireFromString(price),
		ConfidenceInterval: decimal.NewFromInt(5),
		TargetDate:         created.AddDate(0, 0, days),
		CreatedAt:          created,
		Model:              model.ForecastModelSMA,
		Accuracy:           decimal.RequireFromString("0.85"),
	}
}

func TestCommands(t *testing.T) {
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := old.Add(24 * time.Hour)
	r := &fakeReader{
		price: &model.PricePoint{Symbol: "BTCUSDT", Price: decimal.RequireFromString("43000.1"), Timestamp: newer},
		forecasts: []*model.ForecastRecord{
			record(1, old, "90"), record(1, newer, "100"), record(7, newer, "101"), record(30, newer, "103"),
		},
	}
	c := NewCommands(r)
	ctx := context.Background()

	assert.Contains(t, c.Handle(ctx, "/price btcusdt"), "43000.1")
	reply := c.Handle(ctx, "/forecast@PulseBot BTCUSDT")
	assert.Contains(t, reply, "+1d")
	assert.Contains(t, reply, "+30d")
	assert.Contains(t, reply, "103.00 ± 5.00")
	assert.NotContains(t, reply, "90.00")
	assert.Contains(t, c.Handle(ctx, "/symbols"), "BTCUSDT, ETHUSDT")
	assert.Equal(t, Usage, c.Handle(ctx, "/price"))
	assert.Equal(t, Usage, c.Handle(ctx, "hello"))

	empty := NewCommands(&fakeReader{})
	assert.Contains(t, empty.Handle(ctx, "/price BTCUSDT"), "No price data")
	assert.Contains(t, empty.Handle(ctx, "/forecast BTCUSDT"), "No forecast available")
}

func TestPolling(t *testing.T) {
	var sent atomic.Value
	var served int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			if atomic.AddInt32(&served, 1) == 1 {
				w.Write([]byte(`{"ok":true,"result":[{"update_id":7,"message":{"text":" /symbols "}}]}`))
				return
			}
			assert.Equal(t, "8", r.URL.Query().Get("offset"))
			w.Write([]byte(`{"ok":true,"result":[]}`))
		case "/botTOKEN/sendMessage":
			var payload map[string]string
			json.NewDecoder(r.Body).Decode(&payload)
			sent.Store(payload["text"])
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, NewCommands(&fakeReader{}).Handle)
		close(done)
	}()

	require.Eventually(t, func() bool { return sent.Load() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Tracked: BTCUSDT, ETHUSDT", sent.Load())
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("polling did not stop")
	}
}

func TestFormatForecastEmpty(t *testing.T) {
	assert.Contains(t, FormatForecast("ETHUSDT", nil), "ETHUSDT")
}
