// Package batch computes aggregate price statistics over archived partitions.
package batch

import (
	"context"
	"fmt"
	"regexp"

	"CryptoPulse/internal/model"
)

// Engine aggregates price over every archived partition of a symbol. An
// Engine is opened once per process and shared by all forecast runs.
type Engine interface {
	// Aggregate returns mean, max, min and sample standard deviation of price
	// over all partitions for symbol, or model.ErrNoDataAvailable when there
	// are no rows.
	Aggregate(ctx context.Context, symbol string) (model.PriceStats, error)
	Name() string
	Close() error
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9_-]+$`)

// checkSymbol rejects symbols that could escape the archive root when used in
// a file glob.
func checkSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol %q", symbol)
	}
	return nil
}
