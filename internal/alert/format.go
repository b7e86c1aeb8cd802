// Package alert implements the Alert Dispatcher (spec §4.8): it formats
// an AlertRecord into an HTML-formatted chat message and delivers it,
// image-first with a text fallback, to every active destination.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/xbtalert/internal/model"
)

// Format renders rec into the HTML message body sent to chat
// destinations, mirroring the original bot's send_alert message
// construction: a header line, value/quantity/price lines, an order
// breakdown for aggregated alerts, and a market-context footer.
func Format(rec model.AlertRecord) string {
	var b strings.Builder

	timeStr := time.UnixMilli(rec.LatestEventTime).UTC().Format("15:04:05 UTC")

	if rec.Kind == model.AlertAggregated {
		fmt.Fprintf(&b, "\U0001F6A8 <b>%s BUY ALERT - %d Orders Aggregated</b> \U0001F6A8\n\n", rec.Pair, rec.NumTrades)
	} else {
		fmt.Fprintf(&b, "\U0001F6A8 <b>%s BUY ALERT</b> \U0001F6A8\n\n", rec.Pair)
	}

	fmt.Fprintf(&b, "\U0001F4B0 <b>%s:</b> $%s USDT\n", valueLabel(rec), formatDecimal(rec.CanonicalGross, 2))
	fmt.Fprintf(&b, "\U0001F4CA <b>%s:</b> %s XBT\n", quantityLabel(rec), formatDecimal(rec.Quantity, 8))
	fmt.Fprintf(&b, "\U0001F4B5 <b>%s:</b> $%s USDT\n", priceLabel(rec), formatDecimal(rec.WeightedAvgPrice, 2))
	if rec.HasCrossRate {
		fmt.Fprintf(&b, "\U0001F4C8 <b>BTC Rate:</b> $%s USDT\n", formatDecimal(rec.ReferenceRate, 2))
	}
	fmt.Fprintf(&b, "\U0001F3E6 <b>Exchange:</b> %s\n", rec.VenueLabel)
	fmt.Fprintf(&b, "⏰ <b>Time:</b> %s\n", timeStr)

	if rec.Kind == model.AlertAggregated {
		b.WriteString("\n\U0001F4CB <b>Individual Orders:</b>\n")
		for i, line := range rec.Breakdown {
			fmt.Fprintf(&b, "Order %d: %s XBT at $%s USDT\n", i+1, formatDecimal(line.Quantity, 8), formatDecimal(line.Price, 2))
		}
		if rec.TailCount > 0 {
			fmt.Fprintf(&b, "... and %d more orders\n", rec.TailCount)
		}
	}

	b.WriteString("\n\U0001F4C8 <b>Current Market:</b>\n")
	fmt.Fprintf(&b, "\U0001F4B2 <b>%s:</b> $%s USDT\n", rec.Pair, formatDecimal(rec.Market.CanonicalPairPrice, 2))
	if rec.Market.HasMarketCap {
		fmt.Fprintf(&b, "\U0001F3DB <b>Market Cap:</b> $%s\n", formatDecimal(rec.Market.MarketCapUSD, 0))
	}

	b.WriteString("\n\U0001F4CA <b>Volume (rolling):</b>\n")
	fmt.Fprintf(&b, "\U0001F550 <b>15m:</b> %s XBT\n", formatDecimal(rec.Market.Volume15m, 2))
	fmt.Fprintf(&b, "\U0001F550 <b>1h:</b> %s XBT\n", formatDecimal(rec.Market.Volume1h, 2))
	fmt.Fprintf(&b, "\U0001F550 <b>4h:</b> %s XBT\n", formatDecimal(rec.Market.Volume4h, 2))
	fmt.Fprintf(&b, "\U0001F550 <b>24h:</b> %s XBT\n", formatDecimal(rec.Market.Volume24h, 2))

	if rec.Market.LinkPrimary != "" || rec.Market.LinkSecondary != "" {
		b.WriteString("\n\U0001F517 <b>Trade XBT:</b>\n")
		if rec.Market.LinkPrimary != "" {
			fmt.Fprintf(&b, "• <a href='%s'>%s</a>\n", rec.Market.LinkPrimary, rec.Pair)
		}
		if rec.Market.LinkSecondary != "" {
			fmt.Fprintf(&b, "• <a href='%s'>%s</a>\n", rec.Market.LinkSecondary, rec.Pair)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func valueLabel(rec model.AlertRecord) string {
	if rec.Kind == model.AlertAggregated {
		return "Total Value"
	}
	return "Value"
}

func quantityLabel(rec model.AlertRecord) string {
	if rec.Kind == model.AlertAggregated {
		return "Total Quantity"
	}
	return "Quantity"
}

func priceLabel(rec model.AlertRecord) string {
	if rec.Kind == model.AlertAggregated {
		return "Avg Price"
	}
	return "Price"
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
