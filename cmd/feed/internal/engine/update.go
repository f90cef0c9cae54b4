package engine

import (
	"math"

	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/history"
	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

// Fields is the set of values a tick may carry for one asset. Nil means the
// source did not provide it.
type Fields struct {
	Price         float64
	ChangePercent *float64
	Volume        *float64
	High          *float64
	Low           *float64
}

func f64(v float64) *float64 { return &v }

// UpdateAsset applies f to old and returns the new asset. old is not modified.
//
// A missing or invalid price keeps the old price. Percent change comes from
// the source when present, otherwise it is derived from the previous price.
// History only grows when the price moved, or when it is still empty.
func UpdateAsset(old models.Asset, f Fields) models.Asset {
	next := old.Clone()

	price := f.Price
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		price = old.Price
	}

	next.PreviousPrice = old.Price
	next.Price = price

	switch {
	case f.ChangePercent != nil:
		next.ChangePercent = *f.ChangePercent
	case old.Price != 0:
		next.ChangePercent = (price - old.Price) / old.Price * 100
	default:
		next.ChangePercent = 0
	}

	if f.Volume != nil {
		next.Volume = *f.Volume
	}
	if f.High != nil {
		next.High24h = *f.High
	}
	if f.Low != nil {
		next.Low24h = *f.Low
	}

	if price > 0 && (price != old.Price || len(old.History) == 0) {
		next.History = history.Push(old.History, price)
	}

	return next
}
