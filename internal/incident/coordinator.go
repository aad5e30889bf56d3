// Package incident classifies escalated failures, selects a notification
// tier and dispatches alerts through the configured channels.
package incident

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"lusotown-monitoring/internal/metrics"
	"lusotown-monitoring/pkg/types"

	"github.com/sirupsen/logrus"
)

// Config regras de classificação e escalação
type Config struct {
	// SeverityMap mapeia tipo de incidente -> severidade. A tabela é
	// explícita e configurável; tipos fora dela recebem DefaultSeverity.
	SeverityMap     map[string]types.Severity
	DefaultSeverity types.Severity
	// Tiers mapeia tier -> nomes de canais de notificação
	Tiers map[types.EscalationTier][]string
	// DispatchTimeout tempo máximo por entrega de notificação
	DispatchTimeout time.Duration
}

// Coordinator builds incidents from escalated failures and fans them out.
// Notification delivery is best-effort: channel failures are logged and
// counted, never retried, and never propagate to the caller.
type Coordinator struct {
	config    Config
	logger    *logrus.Logger
	crashSink types.CrashSink
	channels  map[string]types.NotificationChannel
}

// New cria um coordenador de incidentes
func New(config Config, logger *logrus.Logger, crashSink types.CrashSink, channels []types.NotificationChannel) *Coordinator {
	if config.DefaultSeverity == "" {
		config.DefaultSeverity = types.SeverityMedium
	}
	if config.DispatchTimeout <= 0 {
		config.DispatchTimeout = 10 * time.Second
	}

	byName := make(map[string]types.NotificationChannel, len(channels))
	for _, ch := range channels {
		byName[ch.Name()] = ch
	}

	return &Coordinator{
		config:    config,
		logger:    logger,
		crashSink: crashSink,
		channels:  byName,
	}
}

// Trigger constrói o incidente, escolhe o tier de escalação e despacha as
// notificações. O incidente não é retido em memória após o despacho.
func (c *Coordinator) Trigger(incidentType string, incidentCtx types.Context) {
	severity := c.severityFor(incidentType)
	inc := types.Incident{
		ID:        types.NewEventID(),
		Type:      incidentType,
		Timestamp: time.Now(),
		Context:   incidentCtx,
		Severity:  severity,
	}
	tier := types.TierForSeverity(severity)

	metrics.IncidentsTotal.WithLabelValues(incidentType, string(severity)).Inc()

	c.logger.WithFields(logrus.Fields{
		"incident_id":   inc.ID,
		"incident_type": incidentType,
		"severity":      severity,
		"tier":          int(tier),
	}).Error("Incident triggered")

	c.dispatch(inc, tier)
	c.report(inc)
}

// severityFor resolve a severidade pela tabela configurada
func (c *Coordinator) severityFor(incidentType string) types.Severity {
	if severity, ok := c.config.SeverityMap[incidentType]; ok {
		return severity
	}
	return c.config.DefaultSeverity
}

// dispatch entrega o incidente aos canais do tier escolhido
func (c *Coordinator) dispatch(inc types.Incident, tier types.EscalationTier) {
	names := c.config.Tiers[tier]
	if len(names) == 0 {
		c.logger.WithField("tier", int(tier)).Warn("No notification channels configured for escalation tier")
		return
	}

	for _, name := range names {
		channel, ok := c.channels[name]
		if !ok {
			c.logger.WithField("channel", name).Warn("Unknown notification channel in tier configuration")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.config.DispatchTimeout)
		err := channel.Notify(ctx, inc, tier)
		cancel()

		if err != nil {
			// Entrega best-effort: loga e segue para o próximo canal
			c.logger.WithFields(logrus.Fields{
				"channel":     name,
				"incident_id": inc.ID,
				"error":       err.Error(),
			}).Warn("Incident notification delivery failed")
			metrics.RecordSinkError(name, "notify_failed")
		}
	}
}

// report encaminha o incidente ao crash sink para que apareça no mesmo
// stream dos erros comuns
func (c *Coordinator) report(inc types.Incident) {
	if c.crashSink == nil {
		return
	}
	c.crashSink.CaptureException(
		fmt.Errorf("Incident: %s", inc.Type),
		types.EventOptions{
			Level: "error",
			Tags: map[string]string{
				"incident_type": inc.Type,
				"severity":      string(inc.Severity),
				"community":     "portuguese-speaking",
			},
			Contexts: map[string]types.Context{
				"incident": inc.Context,
			},
		},
	)
}

// TiersFromConfig converte o mapa string->canais do YAML para tiers tipados
func TiersFromConfig(raw map[string][]string) map[types.EscalationTier][]string {
	tiers := make(map[types.EscalationTier][]string, len(raw))
	for key, channels := range raw {
		n, err := strconv.Atoi(key)
		if err != nil || n < 1 || n > 3 {
			continue
		}
		tiers[types.EscalationTier(n)] = channels
	}
	return tiers
}
