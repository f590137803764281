package monitoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haiwise/knowledge-cli/internal/model"
	"github.com/haiwise/knowledge-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedRun(t *testing.T, st store.Store, status model.RunStatus, confidence float64, retrieved int) {
	t.Helper()
	require.NoError(t, st.SaveRun(context.Background(), &model.QueryRun{
		Question:   "q",
		Agent:      "dev",
		Status:     status,
		Confidence: confidence,
		Retrieved:  retrieved,
	}))
}

func TestCollector_Collect(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedRun(t, st, model.RunStatusComplete, 0.9, 5)
	seedRun(t, st, model.RunStatusComplete, 0.3, 3)
	seedRun(t, st, model.RunStatusFailed, 0, 0)
	seedRun(t, st, model.RunStatusRunning, 0, 0)

	c := NewCollector(st, 0.5)
	snap, err := c.Collect(ctx, 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, 2, snap.Complete)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Running)
	assert.InDelta(t, 1.0/3.0, snap.FailRate, 1e-9)
	assert.InDelta(t, 0.6, snap.AvgConfidence, 1e-9)
	assert.InDelta(t, 4.0, snap.AvgRetrieved, 1e-9)
	assert.Equal(t, 1, snap.LowConfidence)
	assert.InDelta(t, 0.5, snap.LowConfidenceRate, 1e-9)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.WithinDuration(t, time.Now().UTC(), snap.CollectedAt, 5*time.Second)
}

func TestCollector_EmptyStore(t *testing.T) {
	st := newTestStore(t)

	c := NewCollector(st, 0.5)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.FailRate)
	assert.Zero(t, snap.AvgConfidence)
}
