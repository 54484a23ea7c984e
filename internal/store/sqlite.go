package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"CryptoPulse/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists price points and forecasts to a SQLite database.
// Decimals are stored as their canonical string, instants as unix nanoseconds.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so API reads do not block the ingest writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, log: log.With().Str("component", "store").Logger()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.log.Info().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_points (
			id                       INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol                   TEXT    NOT NULL,
			price                    TEXT    NOT NULL,
			volume_24h               TEXT    NOT NULL,
			market_cap               TEXT    NOT NULL,
			high_24h                 TEXT    NOT NULL,
			low_24h                  TEXT    NOT NULL,
			price_change_percent_24h TEXT    NOT NULL,
			timestamp                INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_symbol_ts ON price_points(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS forecasts (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol              TEXT    NOT NULL,
			predicted_price     TEXT    NOT NULL,
			confidence_interval TEXT    NOT NULL,
			target_date         INTEGER NOT NULL,
			created_at          INTEGER NOT NULL,
			model               TEXT,
			accuracy            TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_forecast_symbol_created ON forecasts(symbol, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_forecast_symbol_target ON forecasts(symbol, target_date)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

const insertPrice = `INSERT INTO price_points
	(symbol, price, volume_24h, market_cap, high_24h, low_24h, price_change_percent_24h, timestamp)
	VALUES (?,?,?,?,?,?,?,?)`

func priceArgs(p *model.PricePoint) []any {
	return []any{
		p.Symbol, p.Price.String(), p.Volume24h.String(), p.MarketCapApprox.String(),
		p.High24h.String(), p.Low24h.String(), p.PriceChangePercent24h.String(),
		p.Timestamp.UnixNano(),
	}
}

func (s *SQLiteStore) SavePrice(ctx context.Context, p *model.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, insertPrice, priceArgs(p)...)
	if err != nil {
		return fmt.Errorf("insert price: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		p.ID = id
	}
	return nil
}

func (s *SQLiteStore) SavePrices(ctx context.Context, ps []*model.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertPrice)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range ps {
		res, err := stmt.ExecContext(ctx, priceArgs(p)...)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert price: %w", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			p.ID = id
		}
	}
	return tx.Commit()
}

const selectPrice = `SELECT id, symbol, price, volume_24h, market_cap, high_24h, low_24h, price_change_percent_24h, timestamp
	FROM price_points`

func (s *SQLiteStore) LatestPrice(ctx context.Context, symbol string) (*model.PricePoint, error) {
	ps, err := s.queryPrices(ctx, selectPrice+` WHERE symbol = ? ORDER BY timestamp DESC, id DESC LIMIT 1`, symbol)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, fmt.Errorf("latest price for %s: %w", symbol, model.ErrNoDataAvailable)
	}
	return ps[0], nil
}

func (s *SQLiteStore) RecentPrices(ctx context.Context, symbol string, limit int) ([]*model.PricePoint, error) {
	return s.queryPrices(ctx, selectPrice+` WHERE symbol = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, symbol, limit)
}

func (s *SQLiteStore) PricesInRange(ctx context.Context, symbol string, from, to time.Time) ([]*model.PricePoint, error) {
	return s.queryPrices(ctx, selectPrice+` WHERE symbol = ? AND timestamp BETWEEN ? AND ? ORDER BY timestamp ASC, id ASC`,
		symbol, from.UnixNano(), to.UnixNano())
}

func (s *SQLiteStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM price_points ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *SQLiteStore) CountPrices(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM price_points`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count prices: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) queryPrices(ctx context.Context, query string, args ...any) ([]*model.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var out []*model.PricePoint
	for rows.Next() {
		var (
			p                                   model.PricePoint
			price, vol, mcap, high, low, change string
			ts                                  int64
		)
		if err := rows.Scan(&p.ID, &p.Symbol, &price, &vol, &mcap, &high, &low, &change, &ts); err != nil {
			return nil, err
		}
		if err := parseDecimals(
			decField{price, &p.Price}, decField{vol, &p.Volume24h}, decField{mcap, &p.MarketCapApprox},
			decField{high, &p.High24h}, decField{low, &p.Low24h}, decField{change, &p.PriceChangePercent24h},
		); err != nil {
			return nil, fmt.Errorf("price row %d: %w", p.ID, err)
		}
		p.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveForecasts(ctx context.Context, fs []*model.ForecastRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(fs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, f := range fs {
		res, err := tx.ExecContext(ctx, `INSERT INTO forecasts
			(symbol, predicted_price, confidence_interval, target_date, created_at, model, accuracy)
			VALUES (?,?,?,?,?,?,?)`,
			f.Symbol, f.PredictedPrice.String(), f.ConfidenceInterval.String(),
			f.TargetDate.UnixNano(), f.CreatedAt.UnixNano(), f.Model, f.Accuracy.String(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert forecast: %w", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			f.ID = id
		}
	}
	return tx.Commit()
}

const selectForecast = `SELECT id, symbol, predicted_price, confidence_interval, target_date, created_at, model, accuracy
	FROM forecasts`

func (s *SQLiteStore) LatestForecast(ctx context.Context, symbol string) (*model.ForecastRecord, error) {
	fs, err := s.queryForecasts(ctx, selectForecast+` WHERE symbol = ? ORDER BY created_at DESC, id DESC LIMIT 1`, symbol)
	if err != nil {
		return nil, err
	}
	if len(fs) == 0 {
		return nil, fmt.Errorf("latest forecast for %s: %w", symbol, model.ErrNotFound)
	}
	return fs[0], nil
}

func (s *SQLiteStore) Forecasts(ctx context.Context, symbol string) ([]*model.ForecastRecord, error) {
	return s.queryForecasts(ctx, selectForecast+` WHERE symbol = ? ORDER BY target_date ASC, id ASC`, symbol)
}

func (s *SQLiteStore) ForecastsInRange(ctx context.Context, symbol string, from, to time.Time) ([]*model.ForecastRecord, error) {
	return s.queryForecasts(ctx, selectForecast+` WHERE symbol = ? AND target_date BETWEEN ? AND ? ORDER BY target_date ASC, id ASC`,
		symbol, from.UnixNano(), to.UnixNano())
}

func (s *SQLiteStore) queryForecasts(ctx context.Context, query string, args ...any) ([]*model.ForecastRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	defer rows.Close()

	var out []*model.ForecastRecord
	for rows.Next() {
		var (
			f               model.ForecastRecord
			price, ci       string
			modelName, acc  sql.NullString
			target, created int64
		)
		if err := rows.Scan(&f.ID, &f.Symbol, &price, &ci, &target, &created, &modelName, &acc); err != nil {
			return nil, err
		}
		fields := []decField{{price, &f.PredictedPrice}, {ci, &f.ConfidenceInterval}}
		if acc.Valid {
			fields = append(fields, decField{acc.String, &f.Accuracy})
		}
		if err := parseDecimals(fields...); err != nil {
			return nil, fmt.Errorf("forecast row %d: %w", f.ID, err)
		}
		f.Model = modelName.String
		f.TargetDate = time.Unix(0, target).UTC()
		f.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.log.Info().Msg("closing sqlite store")
	return s.db.Close()
}

type decField struct {
	raw string
	dst *decimal.Decimal
}

func parseDecimals(fields ...decField) error {
	var errs []string
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		*f.dst = d
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
