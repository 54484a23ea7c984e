package notifier

import (
	"context"
	"errors"
	"strings"

	"CryptoPulse/internal/model"
)

// Reader is the read side of the pipeline used to answer chat commands.
type Reader interface {
	GetLatestPrice(ctx context.Context, symbol string) (*model.PricePoint, error)
	GetLatestForecast(ctx context.Context, symbol string) (*model.ForecastRecord, error)
	Forecasts(ctx context.Context, symbol string) ([]*model.ForecastRecord, error)
	TrackedSymbols() []string
}

// Commands answers /price, /forecast and /symbols.
type Commands struct {
	r Reader
}

func NewCommands(r Reader) *Commands { return &Commands{r: r} }

// Handle returns the reply for one chat message.
func (c *Commands) Handle(ctx context.Context, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Usage
	}
	// "/price@MyBot BTCUSDT" in group chats
	cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")

	switch cmd {
	case "/symbols":
		return "Tracked: " + strings.Join(c.r.TrackedSymbols(), ", ")
	case "/price", "/forecast":
		if len(fields) < 2 {
			return Usage
		}
		symbol := strings.ToUpper(fields[1])
		if cmd == "/price" {
			return c.price(ctx, symbol)
		}
		return c.forecast(ctx, symbol)
	default:
		return Usage
	}
}

func (c *Commands) price(ctx context.Context, symbol string) string {
	p, err := c.r.GetLatestPrice(ctx, symbol)
	if err != nil {
		if errors.Is(err, model.ErrNoDataAvailable) {
			return "No price data for <b>" + symbol + "</b>"
		}
		return "Price lookup failed: " + err.Error()
	}
	return FormatPrice(p)
}

func (c *Commands) forecast(ctx context.Context, symbol string) string {
	latest, err := c.r.GetLatestForecast(ctx, symbol)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return FormatForecast(symbol, nil)
		}
		return "Forecast lookup failed: " + err.Error()
	}
	all, err := c.r.Forecasts(ctx, symbol)
	if err != nil {
		return "Forecast lookup failed: " + err.Error()
	}
	var run []*model.ForecastRecord
	for _, f := range all {
		if f.CreatedAt.Equal(latest.CreatedAt) {
			run = append(run, f)
		}
	}
	return FormatForecast(symbol, run)
}
