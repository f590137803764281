package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haiwise/knowledge-cli/internal/config"
)

func monitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		FailureRateThreshold:       0.2,
		LowConfidenceFloor:         0.5,
		LowConfidenceRateThreshold: 0.5,
		LookbackWindowHours:        24,
	}
}

func TestEvaluate_FailureRate(t *testing.T) {
	a := NewAlerter(monitoringConfig())

	alerts := a.Evaluate(&MetricsSnapshot{
		Complete: 6, Failed: 4, FailRate: 0.4, LookbackHours: 24,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertQueryFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestEvaluate_LowConfidenceRate(t *testing.T) {
	a := NewAlerter(monitoringConfig())

	alerts := a.Evaluate(&MetricsSnapshot{
		Complete: 10, LowConfidence: 6, LowConfidenceRate: 0.6, LookbackHours: 24,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLowConfidenceRate, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
}

func TestEvaluate_TinyWindowNeverAlerts(t *testing.T) {
	a := NewAlerter(monitoringConfig())

	alerts := a.Evaluate(&MetricsSnapshot{
		Complete: 1, Failed: 3, FailRate: 0.75,
		LowConfidence: 1, LowConfidenceRate: 1.0,
	})
	assert.Empty(t, alerts)
}

func TestEvaluate_HealthySnapshot(t *testing.T) {
	a := NewAlerter(monitoringConfig())

	alerts := a.Evaluate(&MetricsSnapshot{
		Complete: 20, Failed: 1, FailRate: 1.0 / 21.0,
		LowConfidence: 2, LowConfidenceRate: 0.1,
	})
	assert.Empty(t, alerts)
}

func TestSendAlerts_Webhook(t *testing.T) {
	var received []Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		received = append(received, alert)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := monitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertQueryFailureRate, Severity: "high", Message: "m"},
		{Type: AlertLowConfidenceRate, Severity: "medium", Message: "m2"},
	})
	assert.Equal(t, 2, sent)
	require.Len(t, received, 2)
	assert.Equal(t, AlertQueryFailureRate, received[0].Type)
}

func TestSendAlerts_NoWebhookConfigured(t *testing.T) {
	a := NewAlerter(monitoringConfig())
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertQueryFailureRate}})
	assert.Zero(t, sent)
}

func TestSendAlerts_WebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := monitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertQueryFailureRate}})
	assert.Zero(t, sent)
}
