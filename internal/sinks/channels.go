package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lusotown-monitoring/pkg/types"

	"github.com/sirupsen/logrus"
)

// WebhookChannel canal de notificação que entrega incidentes via POST JSON
// (Slack-style incoming webhook, gateways de e-mail/SMS atrás de HTTP, etc.)
type WebhookChannel struct {
	name       string
	url        string
	httpClient *http.Client
	logger     *logrus.Logger
}

// webhookPayload corpo enviado ao webhook
type webhookPayload struct {
	IncidentID   string        `json:"incident_id"`
	IncidentType string        `json:"incident_type"`
	Severity     string        `json:"severity"`
	Tier         int           `json:"escalation_tier"`
	Timestamp    time.Time     `json:"timestamp"`
	Context      types.Context `json:"context,omitempty"`
}

// NewWebhookChannel cria um canal de webhook
func NewWebhookChannel(config types.WebhookChannelConfig, logger *logrus.Logger) (*WebhookChannel, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("webhook channel: name is required")
	}
	if config.URL == "" {
		return nil, fmt.Errorf("webhook channel %s: URL is required", config.Name)
	}

	timeout := 10 * time.Second
	if config.Timeout != "" {
		if t, err := time.ParseDuration(config.Timeout); err == nil {
			timeout = t
		}
	}

	return &WebhookChannel{
		name:       config.Name,
		url:        config.URL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// Name retorna o nome configurado do canal
func (wc *WebhookChannel) Name() string { return wc.name }

// Notify entrega o incidente ao webhook
func (wc *WebhookChannel) Notify(ctx context.Context, incident types.Incident, tier types.EscalationTier) error {
	body, err := json.Marshal(webhookPayload{
		IncidentID:   incident.ID,
		IncidentType: incident.Type,
		Severity:     string(incident.Severity),
		Tier:         int(tier),
		Timestamp:    incident.Timestamp,
		Context:      incident.Context,
	})
	if err != nil {
		return fmt.Errorf("failed to encode incident payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := wc.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook %s returned HTTP %d", wc.name, resp.StatusCode)
	}
	return nil
}

// LogChannel canal de notificação que registra incidentes no logger local.
// Sempre disponível como fallback dos tiers.
type LogChannel struct {
	logger *logrus.Logger
}

// NewLogChannel cria o canal de log
func NewLogChannel(logger *logrus.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

// Name retorna o nome fixo do canal
func (lc *LogChannel) Name() string { return "log" }

// Notify registra o incidente no logger
func (lc *LogChannel) Notify(_ context.Context, incident types.Incident, tier types.EscalationTier) error {
	lc.logger.WithFields(logrus.Fields{
		"incident_id":   incident.ID,
		"incident_type": incident.Type,
		"severity":      incident.Severity,
		"tier":          int(tier),
		"context":       incident.Context.Flatten(),
	}).Error("Incident alert")
	return nil
}
