package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"CryptoPulse/internal/model"

	"github.com/shopspring/decimal"
)

// MarketClient is the upstream market-data API.
type MarketClient interface {
	// Ticker24h returns the rolling 24-hour ticker for symbol.
	Ticker24h(ctx context.Context, symbol string) (*model.Ticker, error)
	// Klines returns at most limit candles of the given interval with open
	// time in [start, end], oldest first.
	Klines(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]model.Candle, error)
	Name() string
}

// BinanceClient implements MarketClient against the Binance public REST API
// (or any API serving the same /api/v3 shapes).
type BinanceClient struct {
	BaseURL string
	Client  *http.Client
}

// NewBinanceClient creates a client with optional proxy support.
func NewBinanceClient(baseURL, proxyURL string, timeout time.Duration) *BinanceClient {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BinanceClient{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (c *BinanceClient) Name() string { return "binance" }

// binanceTicker is the subset of /api/v3/ticker/24hr we read. Binance sends
// all numeric fields as strings.
type binanceTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	Volume             string `json:"volume"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
}

func (c *BinanceClient) Ticker24h(ctx context.Context, symbol string) (*model.Ticker, error) {
	q := url.Values{"symbol": {symbol}}
	var raw binanceTicker
	if err := c.get(ctx, "/api/v3/ticker/24hr", q, &raw); err != nil {
		return nil, err
	}

	t := &model.Ticker{Symbol: symbol}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"lastPrice", raw.LastPrice, &t.LastPrice},
		{"volume", raw.Volume, &t.Volume},
		{"highPrice", raw.HighPrice, &t.HighPrice},
		{"lowPrice", raw.LowPrice, &t.LowPrice},
		{"priceChangePercent", raw.PriceChangePercent, &t.PriceChangePercent},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("ticker %s: parse %s %q: %w", symbol, f.name, f.raw, model.ErrUpstreamFailure)
		}
		*f.dst = d
	}
	return t, nil
}

func (c *BinanceClient) Klines(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]model.Candle, error) {
	q := url.Values{
		"symbol":    {symbol},
		"interval":  {interval},
		"startTime": {strconv.FormatInt(start.UnixMilli(), 10)},
		"endTime":   {strconv.FormatInt(end.UnixMilli(), 10)},
		"limit":     {strconv.Itoa(limit)},
	}
	var rows [][]json.RawMessage
	if err := c.get(ctx, "/api/v3/klines", q, &rows); err != nil {
		return nil, err
	}

	candles := make([]model.Candle, 0, len(rows))
	for i, row := range rows {
		cd, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("kline %d for %s: %v: %w", i, symbol, err, model.ErrUpstreamFailure)
		}
		candles = append(candles, cd)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].OpenTime.Before(candles[j].OpenTime) })
	return candles, nil
}

// parseKline decodes [openTime, open, high, low, close, volume, ...].
func parseKline(row []json.RawMessage) (model.Candle, error) {
	var cd model.Candle
	if len(row) < 6 {
		return cd, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}
	var openMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return cd, fmt.Errorf("open time: %w", err)
	}
	cd.OpenTime = time.UnixMilli(openMs).UTC()

	dsts := []*decimal.Decimal{&cd.Open, &cd.High, &cd.Low, &cd.Close, &cd.Volume}
	for i, dst := range dsts {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return cd, fmt.Errorf("field %d: %w", i+1, err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return cd, fmt.Errorf("field %d: %w", i+1, err)
		}
		*dst = d
	}
	return cd, nil
}

func (c *BinanceClient) get(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := c.BaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %v: %w", path, err, model.ErrUpstreamFailure)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d, body: %s: %w", path, resp.StatusCode, string(body), model.ErrUpstreamFailure)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %v: %w", path, err, model.ErrUpstreamFailure)
	}
	return nil
}
