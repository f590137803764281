package generation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_MetricQuestionCarriesUsedMetrics(t *testing.T) {
	m := NewMock()
	raw, err := m.Invoke(context.Background(), UserMessage("How is inventory turnover calculated?"))
	require.NoError(t, err)

	var payload struct {
		Answer      string `json:"answer"`
		UsedMetrics []struct {
			Name string `json:"name"`
		} `json:"used_metrics"`
		Confidence float64 `json:"confidence"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	require.Len(t, payload.UsedMetrics, 1)
	assert.Equal(t, "inventory_turnover", payload.UsedMetrics[0].Name)
	assert.Equal(t, 0.87, payload.Confidence)
}

func TestMock_ChineseMetricKeywordRecognized(t *testing.T) {
	m := NewMock()
	raw, err := m.Invoke(context.Background(), UserMessage("库存周转率如何计算？"))
	require.NoError(t, err)
	assert.Contains(t, raw, "inventory_turnover")
}

func TestMock_GenericQuestionEchoes(t *testing.T) {
	m := NewMock()
	raw, err := m.Invoke(context.Background(), UserMessage("what does the yard module do?"))
	require.NoError(t, err)

	var payload struct {
		Answer      string          `json:"answer"`
		UsedMetrics json.RawMessage `json:"used_metrics"`
		Notes       string          `json:"notes"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	assert.Contains(t, payload.Answer, "yard module")
	assert.Equal(t, "simulated response", payload.Notes)
	assert.Equal(t, "[]", string(payload.UsedMetrics))
}

func TestMock_Deterministic(t *testing.T) {
	m := NewMock()
	a, err := m.Invoke(context.Background(), UserMessage("transit time per lane?"))
	require.NoError(t, err)
	b, err := m.Invoke(context.Background(), UserMessage("transit time per lane?"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMock_EmptyMessages(t *testing.T) {
	m := NewMock()
	raw, err := m.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, raw, "answer")
}
