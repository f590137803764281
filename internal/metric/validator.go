// Package metric validates numeric logistics metrics extracted from an
// answer against a reference table and adjusts the payload confidence
// accordingly.
package metric

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/haiwise/knowledge-cli/internal/model"
)

const (
	// clampedConfidence is the confidence ceiling once any supported
	// metric falls outside tolerance.
	clampedConfidence = 0.5
	// corroboratedConfidence is the confidence floor once supported
	// metrics validated and none fell outside tolerance.
	corroboratedConfidence = 0.8
	// defaultTolerance applies to supported metrics with no explicit entry.
	defaultTolerance = 0.05
)

// tolerances is the allow-list of validated metrics with their relative
// tolerance. Metrics outside this list pass through untouched.
var tolerances = map[string]float64{
	"inventory_turnover":     0.05,
	"order_fulfillment_rate": 0.02,
	"transit_time":           0.10,
	"warehousing_cost":       0.05,
	"shipment_on_time_rate":  0.05,
	"on_time_delivery_rate":  0.02,
}

// Validator checks used metrics against reference values.
type Validator struct {
	reference map[string]float64
}

// NewValidator creates a Validator over the given reference table.
func NewValidator(reference map[string]float64) *Validator {
	return &Validator{reference: reference}
}

// Validate compares every supported used metric in payload against the
// reference table and returns the payload with adjusted confidence and
// findings written into notes. A payload without used metrics is returned
// unchanged. Any out-of-tolerance finding clamps confidence to 0.5; when
// all comparable findings are in tolerance, confidence is raised to at
// least 0.8.
func (v *Validator) Validate(payload model.AnswerPayload) model.AnswerPayload {
	if len(payload.UsedMetrics) == 0 {
		return payload
	}

	var notes []string
	inTolerance := 0
	outOfTolerance := 0

	for _, m := range payload.UsedMetrics {
		tolerance, supported := tolerances[m.Name]
		if !supported {
			continue
		}

		ref, ok := v.reference[m.Name]
		if !ok {
			notes = append(notes, fmt.Sprintf("cannot validate metric %s: no reference value", m.Name))
			continue
		}

		value, err := toFloat64(m.Value)
		if err != nil {
			notes = append(notes, fmt.Sprintf("cannot validate metric %s: non-numeric value", m.Name))
			continue
		}

		if withinTolerance(value, ref, tolerance) {
			inTolerance++
			notes = append(notes, fmt.Sprintf("%s in tolerance (reference:%v, extracted:%v)", m.Name, ref, value))
			continue
		}

		outOfTolerance++
		deviation := math.Abs(value-ref) / ref * 100
		notes = append(notes, fmt.Sprintf("%s deviates %.1f%% (reference:%v, extracted:%v)", m.Name, deviation, ref, value))
	}

	confidence := payload.Confidence
	switch {
	case outOfTolerance > 0:
		if confidence > clampedConfidence {
			confidence = clampedConfidence
		}
	case inTolerance > 0:
		if confidence < corroboratedConfidence {
			confidence = corroboratedConfidence
		}
	}

	if len(notes) > 0 {
		payload.Notes = strings.Join(notes, "；")
	}
	payload.Confidence = confidence

	zap.L().Info("metric: validation done",
		zap.Int("in_tolerance", inTolerance),
		zap.Int("out_of_tolerance", outOfTolerance),
		zap.Float64("confidence", confidence),
	)
	return payload
}

// Tolerance reports the relative tolerance for a supported metric and
// whether the metric is supported at all.
func Tolerance(name string) (float64, bool) {
	t, ok := tolerances[name]
	if !ok {
		return defaultTolerance, false
	}
	return t, true
}

// withinTolerance reports whether value lies within the relative tolerance
// of reference. A zero reference only matches a zero value.
func withinTolerance(value, reference, tolerance float64) bool {
	if reference == 0 {
		return value == 0
	}
	return math.Abs(value-reference)/reference <= tolerance
}

// toFloat64 coerces the loosely typed metric value into a float64.
func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("metric: parse %q: %w", x, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("metric: unsupported value type %T", v)
	}
}
