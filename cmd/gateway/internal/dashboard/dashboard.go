// Package dashboard builds the read model behind the asset listing: a title
// that reflects alerts or the BTC price, and a search filter.
package dashboard

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

const (
	DefaultTitle = "Monitor de Criptomonedas"
	titleSymbol  = "BTC"
)

// View is what GET /api/assets returns.
type View struct {
	Title  string             `json:"title"`
	Mode   string             `json:"mode,omitempty"`
	Status *models.FeedEvent  `json:"status,omitempty"`
	Assets []models.FeedEvent `json:"assets"`
}

// Build decodes stored snapshots and applies query. Undecodable or non-asset
// snapshots are skipped. The title always reflects every asset, not only
// the filtered ones.
func Build(snapshots []string, status string, query, quote string) View {
	events := make([]models.FeedEvent, 0, len(snapshots))
	for _, raw := range snapshots {
		var ev models.FeedEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		if ev.Kind != models.KindAsset || ev.Asset == nil {
			continue
		}
		events = append(events, ev)
	}

	v := View{
		Title:  Title(events, quote),
		Assets: Filter(events, query),
	}

	if status != "" {
		var st models.FeedEvent
		if err := json.Unmarshal([]byte(status), &st); err == nil {
			v.Status = &st
			v.Mode = st.Mode
		}
	}
	return v
}

// Title counts armed alerts first; otherwise it shows the BTC price.
func Title(events []models.FeedEvent, quote string) string {
	alerts := 0
	var btc *models.Asset
	for i := range events {
		a := events[i].Asset
		if a == nil {
			continue
		}
		if a.AlertArmed {
			alerts++
		}
		if a.Symbol == titleSymbol {
			btc = a
		}
	}

	switch {
	case alerts > 0:
		return fmt.Sprintf("🚨 %d ALERTAS | Monitor", alerts)
	case btc != nil && btc.Price > 0:
		return fmt.Sprintf("$%s | %s/%s - Monitor", FormatUSD(btc.Price), titleSymbol, quote)
	}
	return DefaultTitle
}

// Filter keeps events whose asset id or symbol contains query, ignoring case.
// An empty query keeps everything.
func Filter(events []models.FeedEvent, query string) []models.FeedEvent {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.FeedEvent, 0, len(events))
	for _, ev := range events {
		if ev.Asset == nil {
			continue
		}
		if q == "" ||
			strings.Contains(strings.ToLower(ev.Asset.ID), q) ||
			strings.Contains(strings.ToLower(ev.Asset.Symbol), q) {
			out = append(out, ev)
		}
	}
	return out
}

// FormatUSD renders 95430.2 as "95,430.20".
func FormatUSD(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
