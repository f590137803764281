package answer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haiwise/knowledge-cli/internal/model"
)

func docs() []model.RetrievedDocument {
	return []model.RetrievedDocument{
		{Source: "inventory.md", Location: "chunk0", Content: "turnover doc", Score: 0.9},
		{Source: "transit.md", Location: "chunk2", Content: "transit doc", Score: 0.7},
	}
}

func TestParse_DirectShapeClampsConfidenceAndFillsCitations(t *testing.T) {
	p := NewParser()
	payload := p.Parse(`{"answer":"x","citations":[],"notes":"","confidence":1.5}`, docs())

	assert.Equal(t, "x", payload.Answer)
	assert.Equal(t, 1.0, payload.Confidence)
	assert.NotEmpty(t, payload.Citations)
	assert.Equal(t, "[inventory.md#chunk0]", payload.Citations[0])
}

func TestParse_NegativeConfidenceClampsToZero(t *testing.T) {
	p := NewParser()
	payload := p.Parse(`{"answer":"x","confidence":-0.2}`, nil)
	assert.Equal(t, 0.0, payload.Confidence)
}

func TestParse_MissingFieldsBackfilled(t *testing.T) {
	p := NewParser()
	payload := p.Parse(`{"confidence":0.4}`, nil)

	assert.Equal(t, model.DefaultAnswer, payload.Answer)
	assert.Equal(t, 0.4, payload.Confidence)
	assert.Equal(t, []string{model.NoCitation}, payload.Citations)
	assert.Empty(t, payload.KeyPoints)
	assert.Empty(t, payload.Notes)
	assert.NotNil(t, payload.UsedMetrics)
}

func TestParse_CitationsValidatedAgainstRetrievedDocs(t *testing.T) {
	p := NewParser()
	payload := p.Parse(`{"answer":"ok","confidence":0.8,"citations":["[inventory.md#chunk0]","[made-up.md#chunk9]"]}`, docs())

	assert.Equal(t, []string{"[inventory.md#chunk0]"}, payload.Citations)
}

func TestParse_AllCitationsInvalidFallsBackToSynthesis(t *testing.T) {
	p := NewParser()
	payload := p.Parse(`{"answer":"ok","confidence":0.8,"citations":["[nope.md#chunk1]"]}`, docs())

	assert.Equal(t, []string{"[inventory.md#chunk0]", "[transit.md#chunk2]"}, payload.Citations)
}

func TestParse_EnvelopeUnwrapped(t *testing.T) {
	p := NewParser()
	raw := `{"choices":[{"message":{"content":"Turnover improved to 8.2 this quarter."}}]}`
	payload := p.Parse(raw, docs())

	assert.Equal(t, "Turnover improved to 8.2 this quarter.", payload.Answer)
	assert.Equal(t, 0.9, payload.Confidence)
	assert.Equal(t, "direct response from generation API", payload.Notes)
	assert.NotEmpty(t, payload.KeyPoints)
}

func TestParse_EnvelopeCompletionTextVariant(t *testing.T) {
	p := NewParser()
	payload := p.Parse(`{"choices":[{"text":"legacy completion answer"}]}`, nil)

	assert.Equal(t, "legacy completion answer", payload.Answer)
	assert.Equal(t, 0.9, payload.Confidence)
	assert.Equal(t, []string{model.NoCitation}, payload.Citations)
}

func TestParse_EmptyEnvelopeContentIsFailurePayload(t *testing.T) {
	p := NewParser()
	payload := p.Parse(`{"choices":[{"message":{"content":""}}]}`, docs())

	assert.Equal(t, model.DefaultAnswer, payload.Answer)
	assert.Equal(t, 0.0, payload.Confidence)
	assert.Equal(t, []string{model.NoCitation}, payload.Citations)
}

func TestParse_RepairsSingleQuotesAndBareKeys(t *testing.T) {
	p := NewParser()
	payload := p.Parse(`Sure, here you go: {answer: 'all lanes on time', confidence: 0.7}`, docs())

	assert.Equal(t, "all lanes on time", payload.Answer)
	assert.Equal(t, 0.7, payload.Confidence)
}

func TestParse_RepairsFencedJSON(t *testing.T) {
	p := NewParser()
	raw := "```json\n{\"answer\":\"fenced answer here\",\"confidence\":0.6,\"citations\":[]}\n```"
	payload := p.Parse(raw, docs())

	assert.Equal(t, "fenced answer here", payload.Answer)
	assert.Equal(t, 0.6, payload.Confidence)
}

func TestParse_PlainTextFallback(t *testing.T) {
	p := NewParser()
	payload := p.Parse("not json", docs())

	assert.Equal(t, "not json", payload.Answer)
	assert.Equal(t, 0.5, payload.Confidence)
	assert.Equal(t, "raw response was not valid JSON", payload.Notes)
	assert.NotEmpty(t, payload.Citations)
}

func TestParse_EmptyResponseUsesDefaultAnswer(t *testing.T) {
	p := NewParser()
	payload := p.Parse("   ", nil)

	assert.Equal(t, model.DefaultAnswer, payload.Answer)
	assert.Equal(t, 0.5, payload.Confidence)
	assert.Empty(t, payload.KeyPoints)
}

func TestParse_RoundTripIsIdempotent(t *testing.T) {
	p := NewParser()
	first := p.Parse(`{"answer":"On-time delivery held at 96% across the eastern lanes. Transit time averaged 2.4 days.","confidence":0.85,"used_metrics":[{"name":"on_time_delivery_rate","value":0.96,"unit":"ratio"}]}`, docs())

	encoded, err := json.Marshal(first)
	require.NoError(t, err)

	second := p.Parse(string(encoded), docs())
	assert.Equal(t, first, second)
}

func TestExtractKeyPoints(t *testing.T) {
	points := extractKeyPoints("库存周转率显著提升。短句。运输时效保持稳定！仓储成本持续下降；准时交付率保持高位？\n码头利用率明显改善")
	require.NotEmpty(t, points)
	assert.Equal(t, "库存周转率显著提升", points[0])
	for _, pt := range points {
		assert.Greater(t, len([]rune(pt)), 5)
	}
	assert.NotContains(t, points, "短句")
}

func TestExtractKeyPoints_CapsAtFive(t *testing.T) {
	points := extractKeyPoints("first long fragment\nsecond long fragment\nthird long fragment\nfourth long fragment\nfifth long fragment\nsixth long fragment")
	assert.Len(t, points, 5)
}

func TestExtractKeyPoints_ASCIIPunctuationDoesNotSplit(t *testing.T) {
	points := extractKeyPoints("Transit time averaged 2.5 days. Fulfillment held at 97%; costs stayed flat!")
	require.Len(t, points, 1)
	assert.Equal(t, "Transit time averaged 2.5 days. Fulfillment held at 97%; costs stayed flat!", points[0])
}
