package forecast

import (
	"context"
	"errors"
	"testing"
	"time"

	"CryptoPulse/internal/model"
	"CryptoPulse/internal/store"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	stats map[string]model.PriceStats
	errs  map[string]error
	calls int
}

func (f *fakeEngine) Name() string { return "fake" }
func (f *fakeEngine) Close() error { return nil }

func (f *fakeEngine) Aggregate(_ context.Context, symbol string) (model.PriceStats, error) {
	f.calls++
	if err, ok := f.errs[symbol]; ok {
		return model.PriceStats{}, err
	}
	st, ok := f.stats[symbol]
	if !ok {
		return model.PriceStats{}, model.ErrNoDataAvailable
	}
	return st, nil
}

type failingStore struct{ store.ForecastStore }

func (failingStore) SaveForecasts(context.Context, []*model.ForecastRecord) error {
	return errors.New("disk full")
}

var runAt = time.Date(2024, 7, 1, 0, 30, 0, 0, time.UTC)

func stats(symbol string, mean, sd int64) model.PriceStats {
	return model.PriceStats{Symbol: symbol, Count: 10, Mean: decimal.NewFromInt(mean), StdDev: decimal.NewFromInt(sd)}
}

func TestForecastDerivesThreeHorizons(t *testing.T) {
	eng := &fakeEngine{stats: map[string]model.PriceStats{"BTCUSDT": stats("BTCUSDT", 100, 5)}}
	st := store.NewMemoryStore()
	f := NewForecaster(eng, st, func() time.Time { return runAt }, nil, zerolog.Nop())

	recs, err := f.Forecast(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, recs, 3)

	want := []struct {
		days        int
		price, band string
	}{
		{1, "100", "5"},
		{7, "101", "6"},
		{30, "103", "7.5"},
	}
	for i, w := range want {
		r := recs[i]
		assert.True(t, r.PredictedPrice.Equal(decimal.RequireFromString(w.price)), "price %d: %s", w.days, r.PredictedPrice)
		assert.True(t, r.ConfidenceInterval.Equal(decimal.RequireFromString(w.band)), "band %d: %s", w.days, r.ConfidenceInterval)
		assert.Equal(t, time.Duration(w.days)*24*time.Hour, r.TargetDate.Sub(runAt))
		assert.True(t, r.CreatedAt.Equal(runAt))
		assert.Equal(t, model.ForecastModelSMA, r.Model)
		assert.Equal(t, "0.85", r.Accuracy.String())
		assert.NotZero(t, r.ID)
	}

	stored, err := st.Forecasts(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestConfidenceNonDecreasing(t *testing.T) {
	for _, sd := range []string{"0", "0.0001", "5", "12345.678"} {
		recs := Derive(model.PriceStats{Symbol: "X", Mean: decimal.NewFromInt(1), StdDev: decimal.RequireFromString(sd)}, runAt)
		for i := 1; i < len(recs); i++ {
			assert.True(t, recs[i].ConfidenceInterval.GreaterThanOrEqual(recs[i-1].ConfidenceInterval), "stddev %s", sd)
			assert.True(t, recs[i].TargetDate.After(recs[i-1].TargetDate))
		}
	}
}

func TestForecastTwiceKeepsBothSets(t *testing.T) {
	eng := &fakeEngine{stats: map[string]model.PriceStats{"ETHUSDT": stats("ETHUSDT", 2000, 40)}}
	st := store.NewMemoryStore()
	clock := runAt
	f := NewForecaster(eng, st, func() time.Time { return clock }, nil, zerolog.Nop())

	_, err := f.Forecast(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	clock = runAt.Add(time.Hour)
	_, err = f.Forecast(context.Background(), "ETHUSDT")
	require.NoError(t, err)

	all, err := st.Forecasts(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	require.Len(t, all, 6)
	created := map[time.Time]int{}
	for _, r := range all {
		created[r.CreatedAt]++
	}
	assert.Equal(t, map[time.Time]int{runAt: 3, runAt.Add(time.Hour): 3}, created)

	latest, err := st.LatestForecast(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.True(t, latest.CreatedAt.Equal(runAt.Add(time.Hour)))
}

func TestForecastNoData(t *testing.T) {
	st := store.NewMemoryStore()
	f := NewForecaster(&fakeEngine{}, st, nil, nil, zerolog.Nop())

	recs, err := f.Forecast(context.Background(), "BTCUSDT")
	assert.NoError(t, err)
	assert.Empty(t, recs)
	_, err = st.LatestForecast(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestForecastAggregateFailure(t *testing.T) {
	eng := &fakeEngine{errs: map[string]error{"BTCUSDT": errors.New("connection reset")}}
	f := NewForecaster(eng, store.NewMemoryStore(), nil, nil, zerolog.Nop())

	_, err := f.Forecast(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, model.ErrForecastFailed)
	assert.ErrorContains(t, err, "connection reset")
}

func TestForecastPersistFailure(t *testing.T) {
	eng := &fakeEngine{stats: map[string]model.PriceStats{"BTCUSDT": stats("BTCUSDT", 1, 1)}}
	f := NewForecaster(eng, failingStore{}, nil, nil, zerolog.Nop())

	_, err := f.Forecast(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, model.ErrForecastFailed)
}

func TestRunAllIsolatesFailures(t *testing.T) {
	eng := &fakeEngine{
		stats: map[string]model.PriceStats{
			"BTCUSDT": stats("BTCUSDT", 100, 5),
			"BNBUSDT": stats("BNBUSDT", 300, 3),
		},
		errs: map[string]error{"ETHUSDT": errors.New("boom")},
	}
	f := NewForecaster(eng, store.NewMemoryStore(), func() time.Time { return runAt }, nil, zerolog.Nop())

	out := f.RunAll(context.Background(), []string{"BTCUSDT", "ETHUSDT", "DOGEUSDT", "BNBUSDT"})
	assert.Equal(t, 4, eng.calls)
	assert.Len(t, out, 2)
	assert.Len(t, out["BTCUSDT"], 3)
	assert.Len(t, out["BNBUSDT"], 3)
}
