// Package reporter normalizes heterogeneous error events into monitoring
// events, forwards them to the crash-reporting sink and tracks alert
// thresholds per category.
package reporter

import (
	"errors"
	"sync"
	"time"

	"lusotown-monitoring/internal/metrics"
	"lusotown-monitoring/pkg/types"

	"github.com/sirupsen/logrus"
)

// ErrorReport entrada de um erro reportado pelo host
type ErrorReport struct {
	Message         string                 `json:"message"`
	Severity        types.Severity         `json:"severity"`
	Category        string                 `json:"category"`
	Context         types.Context          `json:"context"`
	CulturalContext *types.CulturalContext `json:"cultural_context,omitempty"`
}

// AlertRule limite de ocorrências dentro de uma janela móvel
type AlertRule struct {
	Count  int
	Window time.Duration
}

// Reporter constrói MonitoringEvents, encaminha ao crash sink e avalia a
// tabela de alertas. Quando uma categoria cruza o limite configurado, o
// reporter emite um ThresholdBreach no canal Breaches(); quem escuta decide
// se o sinal vira incidente. O reporter nunca chama o coordenador
// diretamente.
type Reporter struct {
	logger    *logrus.Logger
	crashSink types.CrashSink
	analytics types.AnalyticsSink
	rules     map[string]AlertRule

	mu          sync.Mutex
	occurrences map[string][]time.Time

	breaches chan types.ThresholdBreach
	now      func() time.Time
}

// New cria um reporter com a tabela de alertas fornecida
func New(logger *logrus.Logger, crashSink types.CrashSink, analytics types.AnalyticsSink, rules map[string]AlertRule, breachBuffer int) *Reporter {
	if breachBuffer <= 0 {
		breachBuffer = 64
	}
	return &Reporter{
		logger:      logger,
		crashSink:   crashSink,
		analytics:   analytics,
		rules:       rules,
		occurrences: make(map[string][]time.Time),
		breaches:    make(chan types.ThresholdBreach, breachBuffer),
		now:         time.Now,
	}
}

// Breaches retorna o canal de sinais de threshold cruzado
func (r *Reporter) Breaches() <-chan types.ThresholdBreach {
	return r.breaches
}

// Report normaliza e encaminha um erro. Nunca retorna erro e nunca entra em
// pânico: qualquer falha interna é registrada no canal de diagnóstico
// (logger) e absorvida.
func (r *Reporter) Report(report ErrorReport) {
	if report.Message == "" {
		report.Message = "(no message)"
	}
	if !report.Severity.IsValid() {
		report.Severity = types.SeverityMedium
	}
	if report.Category == "" {
		report.Category = "uncategorized"
	}

	event := types.MonitoringEvent{
		ID:              types.NewEventID(),
		Timestamp:       r.now(),
		Severity:        report.Severity,
		Category:        report.Category,
		Message:         report.Message,
		Context:         report.Context,
		CulturalContext: report.CulturalContext,
	}

	metrics.ErrorsReportedTotal.WithLabelValues(event.Category, string(event.Severity)).Inc()

	r.forward(event)
	r.checkThreshold(event.Category, event.Severity)

	if r.analytics != nil {
		r.analytics.TrackEvent("error_boundary", types.Context{
			"error_category":   types.S(event.Category),
			"error_severity":   types.S(string(event.Severity)),
			"cultural_context": types.B(event.CulturalContext != nil),
		})
	}
}

// forward envia o evento ao crash sink com tags de comunidade
func (r *Reporter) forward(event types.MonitoringEvent) {
	if r.crashSink == nil {
		return
	}

	tags := map[string]string{
		"category":  event.Category,
		"community": "portuguese-speaking",
	}
	payload := event.Context
	if cc := event.CulturalContext; cc != nil {
		if cc.Language != "" {
			tags["language"] = string(cc.Language)
		}
		if cc.CulturalFeature != "" {
			tags["cultural_feature"] = cc.CulturalFeature
		}
		payload = payload.Merge(types.Context{
			"language":          types.S(string(cc.Language)),
			"cultural_feature":  types.S(cc.CulturalFeature),
			"community_segment": types.S(cc.CommunitySegment),
			"mobile_device":     types.B(cc.MobileDevice),
		})
	}

	r.crashSink.CaptureException(errors.New(event.Message), types.EventOptions{
		Level: event.Severity.SentryLevel(),
		Tags:  tags,
		Contexts: map[string]types.Context{
			"lusotown": payload,
		},
	})
}

// checkThreshold avalia a janela móvel da categoria e emite um sinal quando
// o limite configurado é cruzado. O bucket é limpo no disparo: uma tempestade
// contínua de erros gera um sinal por janela preenchida, não um por erro.
func (r *Reporter) checkThreshold(category string, severity types.Severity) {
	rule, ok := r.rules[category]
	if !ok || rule.Count <= 0 {
		return
	}

	now := r.now()
	cutoff := now.Add(-rule.Window)

	r.mu.Lock()
	bucket := r.occurrences[category]
	pruned := bucket[:0]
	for _, ts := range bucket {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	pruned = append(pruned, now)

	var breach *types.ThresholdBreach
	if len(pruned) >= rule.Count {
		breach = &types.ThresholdBreach{
			Category: category,
			Severity: severity,
			Count:    len(pruned),
			Window:   rule.Window,
		}
		pruned = pruned[:0]
	}
	r.occurrences[category] = pruned
	r.mu.Unlock()

	if breach == nil {
		return
	}

	metrics.ThresholdBreachesTotal.WithLabelValues(category).Inc()

	select {
	case r.breaches <- *breach:
	default:
		// Canal cheio: descartar é preferível a bloquear o caminho de report
		r.logger.WithFields(logrus.Fields{
			"category": category,
			"count":    breach.Count,
		}).Warn("Threshold breach channel full, dropping signal")
	}
}
