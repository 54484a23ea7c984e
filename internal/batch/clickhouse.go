package batch

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"strings"
	"time"

	"CryptoPulse/internal/archive"
	"CryptoPulse/internal/model"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ClickHouseOption configures a ClickHouseEngine.
type ClickHouseOption func(*ClickHouseConfig)

// ClickHouseConfig holds connection settings for the ClickHouse engine.
type ClickHouseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	UseHTTP     bool
	DialTimeout time.Duration
	ReadTimeout time.Duration
	MaxExecTime time.Duration
	// ArchiveRoot is the archive base path as the server sees it, relative
	// to its user_files directory.
	ArchiveRoot string
}

// WithHost sets database host.
func WithHost(host string) ClickHouseOption {
	return func(c *ClickHouseConfig) {
		c.Host = host
	}
}

// WithPort sets database port.
func WithPort(port int) ClickHouseOption {
	return func(c *ClickHouseConfig) {
		c.Port = port
	}
}

// WithDatabase sets database name.
func WithDatabase(database string) ClickHouseOption {
	return func(c *ClickHouseConfig) {
		c.Database = database
	}
}

// WithCredentials sets username and password.
func WithCredentials(user, password string) ClickHouseOption {
	return func(c *ClickHouseConfig) {
		c.User = user
		c.Password = password
	}
}

// WithTimeouts sets dial and read timeouts.
func WithTimeouts(dial, read time.Duration) ClickHouseOption {
	return func(c *ClickHouseConfig) {
		c.DialTimeout = dial
		c.ReadTimeout = read
	}
}

// WithHTTP enables HTTP protocol instead of native.
func WithHTTP(useHTTP bool) ClickHouseOption {
	return func(c *ClickHouseConfig) {
		c.UseHTTP = useHTTP
	}
}

// WithMaxExecutionTime sets max_execution_time per query.
func WithMaxExecutionTime(d time.Duration) ClickHouseOption {
	return func(c *ClickHouseConfig) {
		c.MaxExecTime = d
	}
}

// WithArchiveRoot sets the archive root as seen by the server.
func WithArchiveRoot(root string) ClickHouseOption {
	return func(c *ClickHouseConfig) {
		c.ArchiveRoot = root
	}
}

// ClickHouseEngine aggregates partitions with ClickHouse's file() table
// function, reading the CSV partitions in place.
type ClickHouseEngine struct {
	db   *sql.DB
	root string
	log  zerolog.Logger
}

// partitionStructure is the column layout of a partition file.
const partitionStructure = "id Int64, symbol String, price String, volume24h String, marketCap String, " +
	"high24h String, low24h String, priceChangePercent24h String, timestamp String"

const aggregateQuery = `SELECT
	count() AS n,
	toString(avg(toFloat64(price))) AS mean,
	toString(max(toDecimal128(price, 18))) AS max_price,
	toString(min(toDecimal128(price, 18))) AS min_price,
	toString(stddevSamp(toFloat64(price))) AS stddev
FROM file(?, 'CSVWithNames', ?)`

// NewClickHouseEngine opens the connection pool and pings the server.
func NewClickHouseEngine(log zerolog.Logger, opts ...ClickHouseOption) (*ClickHouseEngine, error) {
	cfg := &ClickHouseConfig{
		Port:        9000,
		Database:    "default",
		User:        "default",
		DialTimeout: 5 * time.Second,
		ReadTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}

	db, err := sql.Open("clickhouse", buildDSN(*cfg))
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	l := log.With().Str("component", "batch").Str("engine", "clickhouse").Logger()
	l.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("clickhouse session opened")
	return &ClickHouseEngine{db: db, root: cfg.ArchiveRoot, log: l}, nil
}

func (e *ClickHouseEngine) Name() string { return "clickhouse" }

func (e *ClickHouseEngine) Aggregate(ctx context.Context, symbol string) (model.PriceStats, error) {
	if err := checkSymbol(symbol); err != nil {
		return model.PriceStats{}, err
	}

	var (
		n                       uint64
		mean, maxP, minP, stdev string
	)
	err := e.db.QueryRowContext(ctx, aggregateQuery, partitionGlob(e.root, symbol), partitionStructure).
		Scan(&n, &mean, &maxP, &minP, &stdev)
	if err != nil {
		// file() fails outright when the glob matches nothing.
		if strings.Contains(err.Error(), "CANNOT_EXTRACT_TABLE_STRUCTURE") ||
			strings.Contains(err.Error(), "FILE_DOESNT_EXIST") {
			return model.PriceStats{}, fmt.Errorf("no partitions for %s: %w", symbol, model.ErrNoDataAvailable)
		}
		return model.PriceStats{}, fmt.Errorf("aggregate %s: %w", symbol, err)
	}
	return parseAggregate(symbol, n, mean, maxP, minP, stdev)
}

// Close tears down the connection pool.
func (e *ClickHouseEngine) Close() error {
	e.log.Info().Msg("closing clickhouse session")
	return e.db.Close()
}

// partitionGlob is the file() path for every partition of symbol. ClickHouse
// paths always use forward slashes.
func partitionGlob(root, symbol string) string {
	return path.Join(root, symbol, "*", "*", "*", "*", archive.FileName)
}

type aggField struct {
	name string
	raw  string
	dst  *decimal.Decimal
}

func parseAggregate(symbol string, n uint64, mean, maxP, minP, stdev string) (model.PriceStats, error) {
	if n == 0 {
		return model.PriceStats{}, fmt.Errorf("no rows for %s: %w", symbol, model.ErrNoDataAvailable)
	}
	st := model.PriceStats{Symbol: symbol, Count: int64(n), StdDev: decimal.Zero}

	fields := []aggField{
		{"mean", mean, &st.Mean},
		{"max", maxP, &st.Max},
		{"min", minP, &st.Min},
	}
	// stddevSamp is nan for a single row.
	if n > 1 {
		fields = append(fields, aggField{"stddev", stdev, &st.StdDev})
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return model.PriceStats{}, fmt.Errorf("parse %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return st, nil
}

func buildDSN(cfg ClickHouseConfig) string {
	scheme := "clickhouse://"
	if cfg.UseHTTP {
		scheme = "http://"
	}
	dsn := fmt.Sprintf("%s%s:%s@%s:%d/%s",
		scheme, cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	var params []string
	if cfg.DialTimeout > 0 {
		params = append(params, fmt.Sprintf("dial_timeout=%v", cfg.DialTimeout))
	}
	if cfg.ReadTimeout > 0 {
		params = append(params, fmt.Sprintf("read_timeout=%v", cfg.ReadTimeout))
	}
	if cfg.MaxExecTime > 0 {
		params = append(params, fmt.Sprintf("max_execution_time=%d", int(cfg.MaxExecTime.Seconds())))
	}
	if len(params) > 0 {
		dsn += "?" + strings.Join(params, "&")
	}
	return dsn
}
