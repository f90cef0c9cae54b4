package models

// Asset is one tracked coin as seen on a single tick.
type Asset struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	PreviousPrice float64   `json:"previousPrice"`
	ChangePercent float64   `json:"changePercent"`
	Volume        float64   `json:"volume"`
	High24h       float64   `json:"high24h"`
	Low24h        float64   `json:"low24h"`
	History       []float64 `json:"history"` // oldest first, capped
	Threshold     float64   `json:"threshold,omitempty"` // 0 means no alert
	AlertArmed    bool      `json:"alertArmed"`
}

// Clone returns a copy that shares no memory with a.
func (a Asset) Clone() Asset {
	c := a
	if a.History != nil {
		c.History = make([]float64, len(a.History))
		copy(c.History, a.History)
	}
	return c
}

// CloneAssets deep-copies a slice of assets.
func CloneAssets(assets []Asset) []Asset {
	if assets == nil {
		return nil
	}
	out := make([]Asset, len(assets))
	for i, a := range assets {
		out[i] = a.Clone()
	}
	return out
}

// StatisticsResult is derived from an Asset's history, recomputed in full each batch.
type StatisticsResult struct {
	ID          string  `json:"id"`
	Average     float64 `json:"average"`
	Volatility  float64 `json:"volatility"`
	AlertActive bool    `json:"alertActive,omitempty"`
}

// AlertEvent marks a false->true transition of an asset's alert.
type AlertEvent struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Threshold float64 `json:"threshold"`
	Timestamp int64   `json:"timestamp"` // unix micro
}

// ThresholdIntent is emitted by the presentation side. Value 0 clears the alert.
type ThresholdIntent struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

// ModeIntent asks the feed to switch between ModeSimulation and ModeLive.
type ModeIntent struct {
	Mode string `json:"mode"`
}
