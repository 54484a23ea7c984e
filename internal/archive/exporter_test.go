package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"CryptoPulse/internal/model"
	"CryptoPulse/internal/store"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runAt = time.Date(2024, 2, 3, 4, 0, 0, 0, time.UTC)

func save(t *testing.T, st store.PriceStore, symbol, price string, at time.Time) {
	t.Helper()
	p := decimal.RequireFromString(price)
	require.NoError(t, st.SavePrice(context.Background(), &model.PricePoint{
		Symbol:                symbol,
		Price:                 p,
		Volume24h:             decimal.RequireFromString("1000"),
		High24h:               p,
		Low24h:                p,
		PriceChangePercent24h: decimal.RequireFromString("-0.25"),
		MarketCapApprox:       model.ApproxMarketCap(p, decimal.RequireFromString("1000")),
		Timestamp:             at,
	}))
}

func TestPartitionPath(t *testing.T) {
	at := time.Date(2024, 1, 5, 7, 59, 0, 0, time.FixedZone("X", 3*3600))
	assert.Equal(t, filepath.Join("base", "BTCUSDT", "2024", "01", "05", "04", "prices.csv"),
		PartitionPath("base", "BTCUSDT", at))
}

func TestExportWritesPartition(t *testing.T) {
	base := t.TempDir()
	st := store.NewMemoryStore()
	save(t, st, "BTCUSDT", "42000.5", runAt.Add(-30*time.Minute))
	save(t, st, "BTCUSDT", "42100", runAt.Add(-10*time.Minute))
	save(t, st, "BTCUSDT", "1", runAt.Add(-2*time.Hour)) // outside window

	e := NewExporter(st, base, func() time.Time { return runAt }, nil, zerolog.Nop())
	files, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, files)

	data, err := os.ReadFile(filepath.Join(base, "BTCUSDT", "2024", "02", "03", "04", "prices.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,symbol,price,volume24h,marketCap,high24h,low24h,priceChangePercent24h,timestamp", lines[0])
	assert.Equal(t, "1,BTCUSDT,42000.5,1000,42000.5,42000.5,42000.5,-0.25,2024-02-03T03:30:00.000Z", lines[1])
	assert.Equal(t, "2,BTCUSDT,42100,1000,42100,42100,42100,-0.25,2024-02-03T03:50:00.000Z", lines[2])
}

func TestExportSkipsEmptyWindow(t *testing.T) {
	base := t.TempDir()
	st := store.NewMemoryStore()
	save(t, st, "ETHUSDT", "2000", runAt.Add(-3*time.Hour))

	e := NewExporter(st, base, func() time.Time { return runAt }, nil, zerolog.Nop())
	files, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, files)

	_, err = os.Stat(filepath.Join(base, "ETHUSDT"))
	assert.True(t, os.IsNotExist(err), "no directory or file for an empty window")
}

func TestExportOverwrites(t *testing.T) {
	base := t.TempDir()
	st := store.NewMemoryStore()
	save(t, st, "BTCUSDT", "10", runAt.Add(-5*time.Minute))

	path := PartitionPath(base, "BTCUSDT", runAt)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale\nstale\nstale\nstale\n"), 0o644))

	e := NewExporter(st, base, func() time.Time { return runAt }, nil, zerolog.Nop())
	_, n, err := e.ExportSymbol(context.Background(), "BTCUSDT", runAt)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")
	assert.Equal(t, 2, strings.Count(string(data), "\n"))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file cleaned up")
}

func TestExportIsolatesFailures(t *testing.T) {
	base := t.TempDir()
	st := store.NewMemoryStore()
	save(t, st, "AAA", "1", runAt.Add(-time.Minute))
	save(t, st, "BBB", "2", runAt.Add(-time.Minute))

	// A regular file where AAA's symbol directory should be.
	require.NoError(t, os.WriteFile(filepath.Join(base, "AAA"), []byte("x"), 0o644))

	e := NewExporter(st, base, func() time.Time { return runAt }, nil, zerolog.Nop())
	_, _, err := e.ExportSymbol(context.Background(), "AAA", runAt)
	assert.True(t, errors.Is(err, model.ErrArchiveWriteFailure))

	files, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, files)
	_, err = os.Stat(PartitionPath(base, "BBB", runAt))
	assert.NoError(t, err)
}
