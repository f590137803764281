package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// metricKeywords trigger the metric-bearing canned response. The corpus is
// bilingual, so both the English and Chinese metric names are recognized.
var metricKeywords = []string{
	"inventory turnover", "fulfillment rate", "transit time",
	"库存周转率", "履约率", "运输时间",
}

// Mock is a deterministic offline generator. It answers metric questions
// with a fixed payload carrying a used_metrics entry and everything else
// with a generic echo payload, both as strict JSON.
type Mock struct{}

// NewMock creates a Mock generator.
func NewMock() *Mock {
	return &Mock{}
}

// Invoke returns a canned JSON response keyed off the last message.
func (m *Mock) Invoke(_ context.Context, messages []Message) (string, error) {
	question := ""
	if len(messages) > 0 {
		question = messages[len(messages)-1].Content
	}

	zap.L().Debug("generation: mock invoke", zap.Int("messages", len(messages)))

	lower := strings.ToLower(question)
	for _, kw := range metricKeywords {
		if strings.Contains(lower, kw) {
			return metricResponse(), nil
		}
	}
	return genericResponse(question), nil
}

func metricResponse() string {
	payload := map[string]any{
		"answer":    "Inventory turnover = cost of goods sold / average inventory. Average inventory = (opening inventory + closing inventory) / 2.",
		"citations": []string{"[InventoryService.java#L145-167]", "[logistics-design-spec.md#Section2.1]"},
		"used_metrics": []map[string]any{
			{"name": "inventory_turnover", "value": "COGS / average inventory", "unit": "turns/year"},
		},
		"notes":      "",
		"confidence": 0.87,
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func genericResponse(question string) string {
	payload := map[string]any{
		"answer":       fmt.Sprintf("This is a simulated answer to the question '%s'. In production this is produced by a language model.", question),
		"citations":    []string{"[MockResponse]"},
		"used_metrics": []map[string]any{},
		"notes":        "simulated response",
		"confidence":   0.75,
	}
	data, _ := json.Marshal(payload)
	return string(data)
}
