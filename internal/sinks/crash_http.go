package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"lusotown-monitoring/internal/metrics"
	"lusotown-monitoring/pkg/circuit"
	"lusotown-monitoring/pkg/types"

	"github.com/sirupsen/logrus"
)

// HTTPCrashSink entrega capturas de exceção a um coletor de crash reporting
// via POST JSON. Capturas são enfileiradas e enviadas por um worker: o
// caminho de report nunca bloqueia na rede. Breadcrumbs ficam num ring em
// memória e acompanham a próxima captura, no modelo dos clients Sentry.
type HTTPCrashSink struct {
	config     types.CrashSinkConfig
	logger     *logrus.Logger
	httpClient *http.Client
	breaker    *circuit.Breaker

	queue chan crashEnvelope

	crumbMu sync.Mutex
	crumbs  []types.Breadcrumb

	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
	mutex     sync.Mutex
	wg        sync.WaitGroup

	droppedCount int64
}

// crashEnvelope payload enviado ao coletor
type crashEnvelope struct {
	Error       string                   `json:"error"`
	Level       string                   `json:"level"`
	Tags        map[string]string        `json:"tags,omitempty"`
	Contexts    map[string]types.Context `json:"contexts,omitempty"`
	Breadcrumbs []types.Breadcrumb       `json:"breadcrumbs,omitempty"`
	Timestamp   time.Time                `json:"timestamp"`
}

// NewHTTPCrashSink cria o sink de crash reporting
func NewHTTPCrashSink(config types.CrashSinkConfig, logger *logrus.Logger) (*HTTPCrashSink, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("crash sink: no URL configured")
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1000
	}
	if config.BreadcrumbBuffer <= 0 {
		config.BreadcrumbBuffer = 100
	}

	timeout := 10 * time.Second
	if config.Timeout != "" {
		if t, err := time.ParseDuration(config.Timeout); err == nil {
			timeout = t
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &HTTPCrashSink{
		config: config,
		logger: logger,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		breaker: circuit.NewBreaker(circuit.BreakerConfig{
			Name:             "crash_sink",
			FailureThreshold: 10,
			SuccessThreshold: 3,
			Timeout:          60 * time.Second,
		}, logger),
		queue:  make(chan crashEnvelope, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start inicia o worker de envio
func (cs *HTTPCrashSink) Start() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	if cs.isRunning {
		return
	}
	cs.isRunning = true

	cs.wg.Add(1)
	go cs.sendLoop()

	cs.logger.WithField("url", cs.config.URL).Info("Crash reporting sink started")
}

// Stop drena a fila e encerra o worker. Idempotente.
func (cs *HTTPCrashSink) Stop() {
	cs.mutex.Lock()
	if !cs.isRunning {
		cs.mutex.Unlock()
		return
	}
	cs.isRunning = false
	cs.mutex.Unlock()

	cs.cancel()
	cs.wg.Wait()
}

// CaptureException enfileira uma captura com os breadcrumbs acumulados.
// Nunca bloqueia: com a fila cheia a captura é descartada e contabilizada.
func (cs *HTTPCrashSink) CaptureException(err error, opts types.EventOptions) {
	if err == nil {
		return
	}

	envelope := crashEnvelope{
		Error:       err.Error(),
		Level:       opts.Level,
		Tags:        opts.Tags,
		Contexts:    opts.Contexts,
		Breadcrumbs: cs.drainBreadcrumbs(),
		Timestamp:   time.Now(),
	}

	select {
	case cs.queue <- envelope:
	default:
		atomic.AddInt64(&cs.droppedCount, 1)
		cs.logger.Debug("Crash sink queue full, dropping capture")
		metrics.RecordSinkError("crash_sink", "queue_full")
	}
}

// Dropped retorna o total de capturas descartadas por fila cheia
func (cs *HTTPCrashSink) Dropped() int64 {
	return atomic.LoadInt64(&cs.droppedCount)
}

// AddBreadcrumb acrescenta uma trilha ao ring de breadcrumbs
func (cs *HTTPCrashSink) AddBreadcrumb(crumb types.Breadcrumb) {
	if crumb.Timestamp.IsZero() {
		crumb.Timestamp = time.Now()
	}

	cs.crumbMu.Lock()
	defer cs.crumbMu.Unlock()

	cs.crumbs = append(cs.crumbs, crumb)
	if len(cs.crumbs) > cs.config.BreadcrumbBuffer {
		cs.crumbs = cs.crumbs[len(cs.crumbs)-cs.config.BreadcrumbBuffer:]
	}
}

// drainBreadcrumbs retorna e limpa o buffer de breadcrumbs
func (cs *HTTPCrashSink) drainBreadcrumbs() []types.Breadcrumb {
	cs.crumbMu.Lock()
	defer cs.crumbMu.Unlock()

	if len(cs.crumbs) == 0 {
		return nil
	}
	out := cs.crumbs
	cs.crumbs = nil
	return out
}

// sendLoop consome a fila e envia cada envelope ao coletor
func (cs *HTTPCrashSink) sendLoop() {
	defer cs.wg.Done()

	for {
		select {
		case envelope := <-cs.queue:
			cs.send(envelope)
		case <-cs.ctx.Done():
			// Drenar o que restou antes de encerrar
			for {
				select {
				case envelope := <-cs.queue:
					cs.send(envelope)
				default:
					return
				}
			}
		}
	}
}

// send entrega um envelope, protegido pelo circuit breaker
func (cs *HTTPCrashSink) send(envelope crashEnvelope) {
	err := cs.breaker.Execute(func() error {
		body, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("failed to encode crash envelope: %w", err)
		}

		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, cs.config.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build crash request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := cs.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("crash collector returned HTTP %d", resp.StatusCode)
		}
		return nil
	})

	if err != nil {
		cs.logger.WithError(err).Debug("Failed to deliver crash capture")
		metrics.RecordSinkError("crash_sink", "send_failed")
	}
}
