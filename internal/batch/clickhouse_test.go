package batch

import (
	"testing"
	"time"

	"CryptoPulse/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionGlob(t *testing.T) {
	assert.Equal(t, "crypto/BTCUSDT/*/*/*/*/prices.csv", partitionGlob("crypto", "BTCUSDT"))
	assert.Equal(t, "BTCUSDT/*/*/*/*/prices.csv", partitionGlob("", "BTCUSDT"))
}

func TestParseAggregate(t *testing.T) {
	st, err := parseAggregate("BTCUSDT", 4, "100", "110.5", "90", "5")
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.Count)
	assert.Equal(t, "100", st.Mean.String())
	assert.Equal(t, "110.5", st.Max.String())
	assert.Equal(t, "90", st.Min.String())
	assert.Equal(t, "5", st.StdDev.String())
}

func TestParseAggregateSingleRow(t *testing.T) {
	st, err := parseAggregate("BTCUSDT", 1, "100", "100", "100", "nan")
	require.NoError(t, err)
	assert.True(t, st.StdDev.IsZero())
}

func TestParseAggregateEmpty(t *testing.T) {
	_, err := parseAggregate("BTCUSDT", 0, "nan", "0", "0", "nan")
	assert.ErrorIs(t, err, model.ErrNoDataAvailable)
}

func TestParseAggregateBadNumber(t *testing.T) {
	_, err := parseAggregate("BTCUSDT", 2, "inf", "1", "1", "0")
	assert.Error(t, err)
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClickHouseConfig{
		Host: "ch", Port: 9000, Database: "default", User: "u", Password: "p",
		DialTimeout: 5 * time.Second, ReadTimeout: time.Minute, MaxExecTime: 30 * time.Second,
	})
	assert.Equal(t, "clickhouse://u:p@ch:9000/default?dial_timeout=5s&read_timeout=1m0s&max_execution_time=30", dsn)

	dsn = buildDSN(ClickHouseConfig{Host: "ch", Port: 8123, Database: "db", User: "u", UseHTTP: true})
	assert.Equal(t, "http://u:@ch:8123/db", dsn)
}

func TestNewClickHouseEngineRequiresHost(t *testing.T) {
	_, err := NewClickHouseEngine(zerolog.Nop())
	assert.Error(t, err)
}

func TestCheckSymbol(t *testing.T) {
	assert.NoError(t, checkSymbol("BTCUSDT"))
	assert.Error(t, checkSymbol("btc'; DROP"))
	assert.Error(t, checkSymbol(""))
}
