package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/alert"
	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

// ActionCalculate is the only action the worker understands.
const ActionCalculate = "CALCULATE_STATS"

var ErrUnknownAction = errors.New("stats: unknown action")

// Request is the message sent into the worker.
type Request struct {
	Action  string         `json:"action"`
	Payload []AssetPayload `json:"payload"`
}

// AssetPayload is the part of an Asset the computation needs.
type AssetPayload struct {
	ID        string  `json:"id"`
	Price     float64 `json:"price"`
	Threshold float64 `json:"threshold,omitempty"`
	History   Samples `json:"history"`
}

// Samples is a price history that tolerates junk on the wire. Numbers and
// numeric strings are kept; everything else, and any non-finite value, is dropped.
type Samples []float64

func (s Samples) MarshalJSON() ([]byte, error) {
	return json.Marshal([]float64(Sanitize(s)))
}

func (s *Samples) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = nil
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("history must be an array: %w", err)
	}

	out := make(Samples, 0, len(raw))
	for _, r := range raw {
		if v, ok := parseSample(r); ok {
			out = append(out, v)
		}
	}
	*s = out
	return nil
}

func parseSample(r json.RawMessage) (float64, bool) {
	if string(r) == "null" {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(r, &v); err != nil {
		var str string
		if err := json.Unmarshal(r, &str); err != nil {
			return 0, false
		}
		v, err = strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return 0, false
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// NewRequest builds a calculate request from a snapshot.
func NewRequest(assets []models.Asset) Request {
	req := Request{Action: ActionCalculate, Payload: make([]AssetPayload, 0, len(assets))}
	for _, a := range assets {
		req.Payload = append(req.Payload, AssetPayload{
			ID:        a.ID,
			Price:     a.Price,
			Threshold: a.Threshold,
			History:   Samples(a.History),
		})
	}
	return req
}

// Handle decodes a request, computes statistics and encodes the response.
// AlertActive is set from the payload price and threshold.
func Handle(msg []byte) ([]byte, error) {
	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return nil, fmt.Errorf("decode stats request: %w", err)
	}
	if req.Action != ActionCalculate {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}

	results := make([]models.StatisticsResult, 0, len(req.Payload))
	for _, p := range req.Payload {
		avg, vol := Summarize(p.History)
		results = append(results, models.StatisticsResult{
			ID:          p.ID,
			Average:     avg,
			Volatility:  vol,
			AlertActive: alert.Armed(p.Price, p.Threshold),
		})
	}

	out, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("encode stats response: %w", err)
	}
	return out, nil
}
