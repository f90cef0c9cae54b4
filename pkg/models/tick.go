package models

const (
	ModeSimulation = "sim"
	ModeLive       = "real"
)

const (
	KindAsset  = "asset"
	KindStatus = "status"

	// StatusEventKey is the Kafka key used for feed status events.
	StatusEventKey = "_feed"
)

// UpdateTick is the full result of one scheduled tick.
type UpdateTick struct {
	Seq       int64              `json:"seq"`
	Timestamp int64              `json:"timestamp"` // unix micro
	Mode      string             `json:"mode"`
	Assets    []Asset            `json:"assets"`
	Stats     []StatisticsResult `json:"stats"`
	Alerts    []AlertEvent       `json:"alerts,omitempty"`
	Status    string             `json:"status,omitempty"`
	Stale     bool               `json:"stale,omitempty"`
	NoData    bool               `json:"noData,omitempty"`

	NextUpdateIn int `json:"nextUpdateIn,omitempty"` // seconds, live mode only
}

// StatsByID indexes the tick's statistics.
func (t UpdateTick) StatsByID() map[string]StatisticsResult {
	m := make(map[string]StatisticsResult, len(t.Stats))
	for _, s := range t.Stats {
		m[s.ID] = s
	}
	return m
}

// FeedEvent is the unit written to Kafka: one per asset per tick, plus one status event.
type FeedEvent struct {
	Kind      string `json:"kind"`
	Seq       int64  `json:"seq"`
	Timestamp int64  `json:"timestamp"`
	Mode      string `json:"mode"`

	Asset       *Asset            `json:"asset,omitempty"`
	Stats       *StatisticsResult `json:"stats,omitempty"`
	AlertRaised bool              `json:"alertRaised,omitempty"`

	Status       string `json:"status,omitempty"`
	Stale        bool   `json:"stale,omitempty"`
	NoData       bool   `json:"noData,omitempty"`
	ActiveAlerts int    `json:"activeAlerts,omitempty"`
	NextUpdateIn int    `json:"nextUpdateIn,omitempty"`
}

// Key returns the partition key of the event.
func (e FeedEvent) Key() string {
	if e.Kind == KindAsset && e.Asset != nil {
		return e.Asset.ID
	}
	return StatusEventKey
}
