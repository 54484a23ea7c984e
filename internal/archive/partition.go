package archive

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"CryptoPulse/internal/model"
)

// FileName is the name of every partition file.
const FileName = "prices.csv"

// TimestampLayout renders instants in UTC with fixed width so that rows and
// files sort lexically in time order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Header is the first row of every partition file.
var Header = []string{"id", "symbol", "price", "volume24h", "marketCap", "high24h", "low24h", "priceChangePercent24h", "timestamp"}

// PartitionDir returns base/symbol/YYYY/MM/DD/HH for the UTC hour of at.
func PartitionDir(base, symbol string, at time.Time) string {
	at = at.UTC()
	return filepath.Join(base, symbol,
		fmt.Sprintf("%04d", at.Year()),
		fmt.Sprintf("%02d", int(at.Month())),
		fmt.Sprintf("%02d", at.Day()),
		fmt.Sprintf("%02d", at.Hour()),
	)
}

// PartitionPath returns the partition file path for symbol at the given hour.
func PartitionPath(base, symbol string, at time.Time) string {
	return filepath.Join(PartitionDir(base, symbol, at), FileName)
}

// SymbolGlob matches every partition file of symbol under base.
func SymbolGlob(base, symbol string) string {
	return filepath.Join(base, symbol, "*", "*", "*", "*", FileName)
}

// Row renders p in Header order.
func Row(p *model.PricePoint) []string {
	return []string{
		strconv.FormatInt(p.ID, 10),
		p.Symbol,
		p.Price.String(),
		p.Volume24h.String(),
		p.MarketCapApprox.String(),
		p.High24h.String(),
		p.Low24h.String(),
		p.PriceChangePercent24h.String(),
		p.Timestamp.UTC().Format(TimestampLayout),
	}
}
