package calculator

import (
	"errors"
	"math"

	"CryptoPulse/internal/model"

	"github.com/shopspring/decimal"
)

// ErrEmptySample is returned when statistics are requested over no values.
var ErrEmptySample = errors.New("no values to aggregate")

// Accumulator collects running sums for mean, extremes and sample standard
// deviation. The zero value is ready to use. Accumulators from independent
// workers can be combined with Merge.
type Accumulator struct {
	count int64
	sum   decimal.Decimal
	sumSq decimal.Decimal
	min   decimal.Decimal
	max   decimal.Decimal
}

// Add folds one value into the accumulator.
func (a *Accumulator) Add(v decimal.Decimal) {
	if a.count == 0 || v.LessThan(a.min) {
		a.min = v
	}
	if a.count == 0 || v.GreaterThan(a.max) {
		a.max = v
	}
	a.count++
	a.sum = a.sum.Add(v)
	a.sumSq = a.sumSq.Add(v.Mul(v))
}

// Merge folds the values seen by other into a.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil || other.count == 0 {
		return
	}
	if a.count == 0 {
		*a = *other
		return
	}
	if other.min.LessThan(a.min) {
		a.min = other.min
	}
	if other.max.GreaterThan(a.max) {
		a.max = other.max
	}
	a.count += other.count
	a.sum = a.sum.Add(other.sum)
	a.sumSq = a.sumSq.Add(other.sumSq)
}

// Count returns the number of values added.
func (a *Accumulator) Count() int64 { return a.count }

// Stats returns the aggregate for symbol. A single value has a standard
// deviation of zero.
func (a *Accumulator) Stats(symbol string) (model.PriceStats, error) {
	if a.count == 0 {
		return model.PriceStats{}, ErrEmptySample
	}
	n := decimal.NewFromInt(a.count)
	mean := a.sum.Div(n)

	stddev := decimal.Zero
	if a.count > 1 {
		// sum of squared deviations = sumSq - sum^2/n
		ss := a.sumSq.Sub(a.sum.Mul(a.sum).Div(n))
		variance, _ := ss.Div(decimal.NewFromInt(a.count - 1)).Float64()
		if variance > 0 {
			stddev = decimal.NewFromFloat(math.Sqrt(variance))
		}
	}

	return model.PriceStats{
		Symbol: symbol,
		Count:  a.count,
		Mean:   mean,
		Max:    a.max,
		Min:    a.min,
		StdDev: stddev,
	}, nil
}

// CalculateStats aggregates a slice of values in one pass.
func CalculateStats(symbol string, values []decimal.Decimal) (model.PriceStats, error) {
	var acc Accumulator
	for _, v := range values {
		acc.Add(v)
	}
	return acc.Stats(symbol)
}
