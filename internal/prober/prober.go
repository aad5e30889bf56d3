// Package prober runs periodic health checks against named endpoints with
// bounded retries and fixed inter-retry delay, tracking rolling uptime.
package prober

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"lusotown-monitoring/internal/metrics"
	"lusotown-monitoring/pkg/types"

	"github.com/sirupsen/logrus"
)

// IncidentTypeUptimeFailure tipo de incidente emitido quando todas as
// tentativas de probe falham
const IncidentTypeUptimeFailure = "uptime_failure"

// Config configurações do prober
type Config struct {
	Endpoints     map[string]string
	CheckInterval time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	ProbeTimeout  time.Duration
	// DegradedThreshold marca probes bem-sucedidos porém lentos como
	// degraded; zero desabilita o estado degraded
	DegradedThreshold time.Duration
	UptimeWindow      int
}

// FailureHandler recebe a escalação quando um endpoint esgota os retries
type FailureHandler func(incidentType string, ctx types.Context)

// Prober state machine per endpoint. Each endpoint runs its own goroutine on
// a fixed interval; cycles for one endpoint are serialized by construction,
// cycles for different endpoints run concurrently.
type Prober struct {
	config    Config
	logger    *logrus.Logger
	client    types.Doer
	store     types.SnapshotStore
	onFailure FailureHandler

	mu       sync.RWMutex
	statuses map[string]types.UptimeStatus
	history  map[string][]bool

	runMu     sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New cria um prober. client e store podem ser nil (cliente HTTP padrão e
// sem persistência, respectivamente).
func New(config Config, logger *logrus.Logger, client types.Doer, store types.SnapshotStore, onFailure FailureHandler) *Prober {
	if config.RetryAttempts < 1 {
		config.RetryAttempts = 1
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = 60 * time.Second
	}
	if config.UptimeWindow <= 0 {
		config.UptimeWindow = 100
	}
	if client == nil {
		timeout := config.ProbeTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Prober{
		config:    config,
		logger:    logger,
		client:    client,
		store:     store,
		onFailure: onFailure,
		statuses:  make(map[string]types.UptimeStatus),
		history:   make(map[string][]bool),
	}
}

// Start inicia um loop de probe por endpoint. Chamadas repetidas são no-op.
func (p *Prober) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.isRunning {
		return
	}
	p.isRunning = true

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.hydrateFromStore()

	for name, path := range p.config.Endpoints {
		p.wg.Add(1)
		go p.monitorEndpoint(runCtx, name, path)
	}

	p.logger.WithFields(logrus.Fields{
		"endpoints":      len(p.config.Endpoints),
		"check_interval": p.config.CheckInterval,
		"retry_attempts": p.config.RetryAttempts,
	}).Info("Uptime monitoring started")
}

// Stop cancela todos os loops de probe. Idempotente.
func (p *Prober) Stop() {
	p.runMu.Lock()
	if !p.isRunning {
		p.runMu.Unlock()
		return
	}
	p.isRunning = false
	cancel := p.cancel
	p.runMu.Unlock()

	cancel()
	p.wg.Wait()
	p.logger.Info("Uptime monitoring stopped")
}

// monitorEndpoint executa ciclos de probe em intervalo fixo até o contexto
// ser cancelado. O loop serializa os ciclos do endpoint: nunca há dois
// probes do mesmo endpoint em voo.
func (p *Prober) monitorEndpoint(ctx context.Context, name, path string) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.CheckEndpoint(ctx, name, path)
		case <-ctx.Done():
			return
		}
	}
}

// CheckEndpoint executa um ciclo de probe: uma tentativa inicial e retries
// com espera fixa entre tentativas, até o máximo configurado.
func (p *Prober) CheckEndpoint(ctx context.Context, name, path string) {
	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= p.config.RetryAttempts; attempt++ {
		elapsed, err := p.probe(ctx, path)
		if err == nil {
			// Sucesso: nenhum retry é necessário
			status := types.EndpointUp
			if p.config.DegradedThreshold > 0 && elapsed > p.config.DegradedThreshold {
				status = types.EndpointDegraded
			}
			p.recordOutcome(name, true)
			p.recordStatus(types.UptimeStatus{
				Endpoint:      name,
				Status:        status,
				ResponseTime:  elapsed.Milliseconds(),
				LastCheck:     time.Now(),
				UptimePercent: p.uptimePercent(name),
			})
			metrics.ProbeDuration.WithLabelValues(name).Observe(elapsed.Seconds())
			return
		}

		lastErr = err
		p.logger.WithFields(logrus.Fields{
			"endpoint": name,
			"attempt":  attempt,
			"error":    err.Error(),
		}).Debug("Probe attempt failed")

		if attempt < p.config.RetryAttempts {
			if !p.waitRetry(ctx) {
				return
			}
		}
	}

	// Todas as tentativas esgotadas
	responseTime := time.Since(start)
	p.recordOutcome(name, false)
	uptime := p.uptimePercent(name)
	p.recordStatus(types.UptimeStatus{
		Endpoint:      name,
		Status:        types.EndpointDown,
		ResponseTime:  responseTime.Milliseconds(),
		LastCheck:     time.Now(),
		UptimePercent: uptime,
	})

	metrics.ProbeFailuresTotal.WithLabelValues(name).Inc()

	lastErrMsg := ""
	if lastErr != nil {
		lastErrMsg = lastErr.Error()
	}
	p.logger.WithFields(logrus.Fields{
		"endpoint": name,
		"attempts": p.config.RetryAttempts,
		"error":    lastErrMsg,
	}).Error("Uptime check failed after all retry attempts")

	if p.onFailure != nil {
		p.onFailure(IncidentTypeUptimeFailure, types.Context{
			"endpoint":         types.S(name),
			"path":             types.S(path),
			"attempts":         types.N(float64(p.config.RetryAttempts)),
			"last_error":       types.S(lastErrMsg),
			"response_time_ms": types.N(float64(responseTime.Milliseconds())),
			"uptime_percent":   types.N(uptime),
		})
	}
}

// probe faz um GET único contra o endpoint
func (p *Prober) probe(ctx context.Context, path string) (time.Duration, error) {
	probeCtx := ctx
	if p.config.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, p.config.ProbeTimeout)
		defer cancel()
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return time.Since(start), err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	elapsed := time.Since(start)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return elapsed, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return elapsed, nil
}

// waitRetry espera o delay fixo entre tentativas; retorna false se o
// contexto foi cancelado durante a espera
func (p *Prober) waitRetry(ctx context.Context) bool {
	if p.config.RetryDelay <= 0 {
		return true
	}
	timer := time.NewTimer(p.config.RetryDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// recordOutcome adiciona o resultado do ciclo à janela de histórico
func (p *Prober) recordOutcome(name string, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	history := append(p.history[name], success)
	if len(history) > p.config.UptimeWindow {
		history = history[len(history)-p.config.UptimeWindow:]
	}
	p.history[name] = history
}

// uptimePercent calcula o uptime sobre a janela de checks observados.
// Sem observações o endpoint é considerado 100% saudável.
func (p *Prober) uptimePercent(name string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	history := p.history[name]
	if len(history) == 0 {
		return 100.0
	}
	ups := 0
	for _, ok := range history {
		if ok {
			ups++
		}
	}
	return float64(ups) / float64(len(history)) * 100.0
}

// recordStatus sobrescreve o registro vivo do endpoint e persiste o snapshot
func (p *Prober) recordStatus(status types.UptimeStatus) {
	p.mu.Lock()
	p.statuses[status.Endpoint] = status
	p.mu.Unlock()

	switch status.Status {
	case types.EndpointUp:
		metrics.EndpointUp.WithLabelValues(status.Endpoint).Set(1)
	case types.EndpointDegraded:
		metrics.EndpointUp.WithLabelValues(status.Endpoint).Set(0.5)
	default:
		metrics.EndpointUp.WithLabelValues(status.Endpoint).Set(0)
	}
	metrics.RollingUptimePercent.WithLabelValues(status.Endpoint).Set(status.UptimePercent)

	if p.store == nil {
		return
	}
	encoded, err := json.Marshal(status)
	if err != nil {
		p.logger.WithError(err).Debug("Failed to encode uptime snapshot")
		return
	}
	if err := p.store.Set(snapshotKey(status.Endpoint), string(encoded)); err != nil {
		// Snapshot é cache de conveniência; falha não interrompe o probe
		p.logger.WithError(err).WithField("endpoint", status.Endpoint).Debug("Failed to persist uptime snapshot")
		metrics.RecordSinkError("snapshot_store", "write_failed")
	}
}

// hydrateFromStore recarrega os últimos snapshots persistidos
func (p *Prober) hydrateFromStore() {
	if p.store == nil {
		return
	}
	for name := range p.config.Endpoints {
		value, ok, err := p.store.Get(snapshotKey(name))
		if err != nil || !ok {
			continue
		}
		var status types.UptimeStatus
		if err := json.Unmarshal([]byte(value), &status); err != nil {
			continue
		}
		p.mu.Lock()
		if _, exists := p.statuses[name]; !exists {
			p.statuses[name] = status
		}
		p.mu.Unlock()
	}
}

// Status retorna uma cópia do registro vivo por endpoint
func (p *Prober) Status() map[string]types.UptimeStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]types.UptimeStatus, len(p.statuses))
	for name, status := range p.statuses {
		out[name] = status
	}
	return out
}

func snapshotKey(endpoint string) string {
	return "uptime:" + endpoint
}
