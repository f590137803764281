package model

// DefaultAnswer is the placeholder used when no usable answer text could be
// recovered from a generator response.
const DefaultAnswer = "unable to produce a valid answer"

// NoCitation is the sentinel emitted when no retrieved document backs an answer.
const NoCitation = "[no valid citation]"

// UsedMetric is a numeric business metric the generator claims to have used.
type UsedMetric struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
	Unit  string `json:"unit"`
}

// AnswerPayload is the strict output contract of the answer parser and the
// input/output of the metric validator. Every field is present after
// parsing; Confidence is always within [0,1].
type AnswerPayload struct {
	Answer      string       `json:"answer"`
	Confidence  float64      `json:"confidence"`
	Citations   []string     `json:"citations"`
	KeyPoints   []string     `json:"key_points"`
	Notes       string       `json:"notes"`
	UsedMetrics []UsedMetric `json:"used_metrics"`
}

// Unavailable is the terminal payload printed when the pipeline itself
// fails before producing anything better.
func Unavailable() AnswerPayload {
	return AnswerPayload{
		Answer:      "the system is temporarily unavailable, please retry later",
		Confidence:  0,
		Citations:   []string{NoCitation},
		KeyPoints:   []string{},
		Notes:       "internal system error",
		UsedMetrics: []UsedMetric{},
	}
}
