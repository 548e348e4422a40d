package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brifyai/pautapro/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	// AlertPartialCommit fires when an order was persisted but its document
	// could not be produced.
	AlertPartialCommit AlertType = "partial_commit"
	// AlertBackendFault fires when the record store fails during a turn.
	AlertBackendFault AlertType = "backend_fault"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter posts alerts to an operator webhook. Without a webhook URL every
// alert is only logged.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	timeout := time.Duration(cfg.AlertTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// PartialCommit builds the alert for an order whose document failed.
func PartialCommit(ordenID int64, sessionID string, cause error) Alert {
	details := map[string]any{"orden_id": ordenID, "session_id": sessionID}
	if cause != nil {
		details["error"] = cause.Error()
	}
	return Alert{
		Type:      AlertPartialCommit,
		Severity:  "high",
		Message:   "order persisted without document",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// BackendFault builds the alert for a store failure at stage.
func BackendFault(stage, sessionID string, cause error) Alert {
	details := map[string]any{"stage": stage, "session_id": sessionID}
	if cause != nil {
		details["error"] = cause.Error()
	}
	return Alert{
		Type:      AlertBackendFault,
		Severity:  "medium",
		Message:   "record store unavailable during " + stage,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// Notify delivers one alert. A nil Alerter drops it.
func (a *Alerter) Notify(ctx context.Context, alert Alert) {
	if a == nil {
		return
	}
	a.SendAlerts(ctx, []Alert{alert})
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if len(alerts) == 0 {
		return 0
	}
	if a.cfg.WebhookURL == "" {
		for _, alert := range alerts {
			zap.L().Warn("monitoring: alert (no webhook configured)",
				zap.String("type", string(alert.Type)),
				zap.String("message", alert.Message),
				zap.Any("details", alert.Details),
			)
		}
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
