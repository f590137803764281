// Package monitoring observes answer quality over recorded query runs: a
// collector summarizing recent runs, an alerter evaluating thresholds with
// webhook delivery, and a background checker driving both.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/haiwise/knowledge-cli/internal/model"
	"github.com/haiwise/knowledge-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of answer quality.
type MetricsSnapshot struct {
	// Run outcomes within the lookback window.
	Total    int     `json:"total"`
	Complete int     `json:"complete"`
	Failed   int     `json:"failed"`
	Running  int     `json:"running"`
	FailRate float64 `json:"fail_rate"`

	// Quality of completed runs.
	AvgConfidence     float64 `json:"avg_confidence"`
	AvgRetrieved      float64 `json:"avg_retrieved"`
	LowConfidence     int     `json:"low_confidence"`
	LowConfidenceRate float64 `json:"low_confidence_rate"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers quality metrics from the run store.
type Collector struct {
	store              store.Store
	lowConfidenceFloor float64
}

// NewCollector creates a metrics collector. Completed runs below the floor
// count as low-confidence answers.
func NewCollector(st store.Store, lowConfidenceFloor float64) *Collector {
	return &Collector{store: st, lowConfidenceFloor: lowConfidenceFloor}
}

// Collect summarizes the runs created within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}
	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	var totalConfidence float64
	var totalRetrieved int
	for _, r := range runs {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.Total++
		switch r.Status {
		case model.RunStatusComplete:
			snap.Complete++
			totalConfidence += r.Confidence
			totalRetrieved += r.Retrieved
			if r.Confidence < c.lowConfidenceFloor {
				snap.LowConfidence++
			}
		case model.RunStatusFailed:
			snap.Failed++
		case model.RunStatusRunning:
			snap.Running++
		}
	}

	finished := snap.Complete + snap.Failed
	if finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	if snap.Complete > 0 {
		snap.AvgConfidence = totalConfidence / float64(snap.Complete)
		snap.AvgRetrieved = float64(totalRetrieved) / float64(snap.Complete)
		snap.LowConfidenceRate = float64(snap.LowConfidence) / float64(snap.Complete)
	}
	return snap, nil
}
