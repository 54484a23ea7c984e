package notifier

import (
	"fmt"
	"strings"

	"CryptoPulse/internal/model"
)

const timeLayout = "2006-01-02 15:04 MST"

// FormatForecast formats one forecast run for a symbol.
func FormatForecast(symbol string, records []*model.ForecastRecord) string {
	if len(records) == 0 {
		return fmt.Sprintf("No forecast available for <b>%s</b>", symbol)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔮 <b>%s forecast</b> | %s\n\n", symbol, records[0].CreatedAt.Format(timeLayout)))
	for _, r := range records {
		days := int(r.Horizon().Hours() / 24)
		b.WriteString(fmt.Sprintf("+%dd (%s): %s ± %s\n",
			days, r.TargetDate.Format("2006-01-02"),
			r.PredictedPrice.StringFixed(2), r.ConfidenceInterval.StringFixed(2)))
	}
	b.WriteString(fmt.Sprintf("\nmodel: %s, accuracy %s", records[0].Model, records[0].Accuracy.String()))
	return b.String()
}

// FormatPrice formats one price point.
func FormatPrice(p *model.PricePoint) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💱 <b>%s</b> %s\n", p.Symbol, p.Price.String()))
	b.WriteString(fmt.Sprintf("24h: %s%% | high %s | low %s\n",
		p.PriceChangePercent24h.String(), p.High24h.String(), p.Low24h.String()))
	b.WriteString(fmt.Sprintf("volume %s | at %s", p.Volume24h.String(), p.Timestamp.Format(timeLayout)))
	return b.String()
}

// Usage lists the supported chat commands.
const Usage = "Commands:\n• /price SYMBOL\n• /forecast SYMBOL\n• /symbols"
