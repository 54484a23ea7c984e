package calculator

import (
	"errors"

	"github.com/shopspring/decimal"
)

const percentScale = 4

var hundred = decimal.NewFromInt(100)

// PercentChange returns (close-open)/open*100 rounded half-up to four
// fractional digits.
// The percentage is rounded, not the ratio: 3→4 gives 33.3333, not 33.3300.
func PercentChange(open, close decimal.Decimal) (decimal.Decimal, error) {
	if open.IsZero() {
		return decimal.Zero, errors.New("open price is zero")
	}
	return close.Sub(open).Mul(hundred).DivRound(open, percentScale), nil
}
