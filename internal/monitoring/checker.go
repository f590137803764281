package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/haiwise/knowledge-cli/internal/config"
)

// minCheckRuns is the smallest window worth evaluating. Rates over fewer
// finished runs swing too hard to alert on.
const minCheckRuns = 5

// CheckState is the accumulated outcome of the background checks, surfaced
// through the stats endpoint alongside the live snapshot.
type CheckState struct {
	LastCheckAt     time.Time `json:"last_check_at"`
	Checks          int       `json:"checks"`
	Skipped         int       `json:"skipped"`
	AlertsTriggered int       `json:"alerts_triggered"`
	AlertsSent      int       `json:"alerts_sent"`
}

// Checker drives the collector and alerter on a fixed interval.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	mu    sync.Mutex
	state CheckState
}

// NewChecker creates a background answer-quality checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// State returns a copy of the latest check outcome.
func (c *Checker) State() CheckState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting answer-quality checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("answer-quality checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

// check evaluates one lookback window. Windows with fewer than minCheckRuns
// finished runs are recorded as skipped and never alerted on.
func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	c.mu.Lock()
	c.state.LastCheckAt = time.Now().UTC()
	c.state.Checks++
	c.mu.Unlock()

	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return
	}

	finished := snap.Complete + snap.Failed
	if finished < minCheckRuns {
		c.mu.Lock()
		c.state.Skipped++
		c.mu.Unlock()
		log.Debug("monitoring: window too small to evaluate",
			zap.Int("finished", finished),
			zap.Int("minimum", minCheckRuns),
		)
		return
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	c.mu.Lock()
	c.state.AlertsTriggered += len(alerts)
	c.state.AlertsSent += sent
	c.mu.Unlock()

	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}
