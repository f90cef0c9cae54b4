package stats_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/stats"
	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

func TestCompute_EmptyHistory(t *testing.T) {
	res := stats.Compute([]models.Asset{{ID: "bitcoin"}})

	require.Len(t, res, 1)
	assert.Equal(t, "bitcoin", res[0].ID)
	assert.Zero(t, res[0].Average)
	assert.Zero(t, res[0].Volatility)
}

func TestCompute_MeanAndPopulationStdDev(t *testing.T) {
	res := stats.Compute([]models.Asset{
		{ID: "a", History: []float64{10, 20, 30}},
		{ID: "b", History: []float64{5}},
	})

	require.Len(t, res, 2)
	assert.InDelta(t, 20.0, res[0].Average, 1e-9)
	assert.InDelta(t, math.Sqrt(200.0/3.0), res[0].Volatility, 1e-9)
	assert.InDelta(t, 5.0, res[1].Average, 1e-9)
	assert.Zero(t, res[1].Volatility)
}

func TestCompute_DropsNonFinite(t *testing.T) {
	dirty := stats.Compute([]models.Asset{{ID: "a", History: []float64{10, math.NaN(), 20, math.Inf(1), 30}}})
	clean := stats.Compute([]models.Asset{{ID: "a", History: []float64{10, 20, 30}}})

	assert.Equal(t, clean, dirty)
}

func TestCompute_AllInvalid(t *testing.T) {
	res := stats.Compute([]models.Asset{{ID: "a", History: []float64{math.NaN(), math.Inf(-1)}}})

	assert.Zero(t, res[0].Average)
	assert.Zero(t, res[0].Volatility)
}

func TestHandle_SanitizesWirePayload(t *testing.T) {
	msg := []byte(`{"action":"CALCULATE_STATS","payload":[{"id":"bitcoin","history":[10,"bad",20,"NaN",30,null,{"x":1}]}]}`)

	out, err := stats.Handle(msg)
	require.NoError(t, err)

	var res []models.StatisticsResult
	require.NoError(t, json.Unmarshal(out, &res))
	require.Len(t, res, 1)
	assert.InDelta(t, 20.0, res[0].Average, 1e-9)
	assert.InDelta(t, 8.165, res[0].Volatility, 1e-3)
}

func TestHandle_NumericStrings(t *testing.T) {
	msg := []byte(`{"action":"CALCULATE_STATS","payload":[{"id":"eth","history":["100.5", " 99.5 "]}]}`)

	out, err := stats.Handle(msg)
	require.NoError(t, err)

	var res []models.StatisticsResult
	require.NoError(t, json.Unmarshal(out, &res))
	assert.InDelta(t, 100.0, res[0].Average, 1e-9)
}

func TestHandle_AlertActive(t *testing.T) {
	req := stats.NewRequest([]models.Asset{
		{ID: "a", Price: 90, Threshold: 100, History: []float64{90}},
		{ID: "b", Price: 110, Threshold: 100, History: []float64{110}},
		{ID: "c", Price: 90, History: []float64{90}},
	})
	msg, err := json.Marshal(req)
	require.NoError(t, err)

	out, err := stats.Handle(msg)
	require.NoError(t, err)

	var res []models.StatisticsResult
	require.NoError(t, json.Unmarshal(out, &res))
	assert.True(t, res[0].AlertActive)
	assert.False(t, res[1].AlertActive)
	assert.False(t, res[2].AlertActive)
}

func TestHandle_UnknownAction(t *testing.T) {
	_, err := stats.Handle([]byte(`{"action":"DELETE_ALL","payload":[]}`))
	assert.True(t, errors.Is(err, stats.ErrUnknownAction))
}

func TestHandle_InvalidJSON(t *testing.T) {
	_, err := stats.Handle([]byte(`{"action":`))
	assert.Error(t, err)
}

func TestSamples_MarshalDropsNonFinite(t *testing.T) {
	b, err := json.Marshal(stats.Samples{1, math.NaN(), 2, math.Inf(1)})
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(b))
}
