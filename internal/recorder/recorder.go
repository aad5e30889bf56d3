// Package recorder implements the performance metric recorder: a bounded
// FIFO buffer of recent measurements with fan-out to external sinks.
package recorder

import (
	"fmt"
	"math"
	"sync"
	"time"

	"lusotown-monitoring/internal/metrics"
	"lusotown-monitoring/pkg/types"

	"github.com/sirupsen/logrus"
)

// DefaultCapacity retenção máxima do ring buffer de métricas
const DefaultCapacity = 1000

// Recorder accepts named metrics, keeps the most recent ones in a ring
// buffer and forwards each measurement to the crash-reporting breadcrumb
// trail and the analytics sink. Record never returns an error and never
// blocks on sink delivery.
type Recorder struct {
	logger    *logrus.Logger
	crashSink types.CrashSink
	analytics types.AnalyticsSink

	mu       sync.Mutex
	buffer   []types.PerformanceMetric
	start    int
	count    int
	capacity int
}

// New cria um recorder com a capacidade padrão de 1000 métricas
func New(logger *logrus.Logger, crashSink types.CrashSink, analytics types.AnalyticsSink) *Recorder {
	return NewWithCapacity(logger, crashSink, analytics, DefaultCapacity)
}

// NewWithCapacity cria um recorder com capacidade customizada
func NewWithCapacity(logger *logrus.Logger, crashSink types.CrashSink, analytics types.AnalyticsSink, capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		logger:    logger,
		crashSink: crashSink,
		analytics: analytics,
		buffer:    make([]types.PerformanceMetric, capacity),
		capacity:  capacity,
	}
}

// Record registra uma métrica de performance. Entrada malformada é ajustada
// ou descartada silenciosamente: monitoração nunca pode quebrar a página
// hospedeira.
func (r *Recorder) Record(metric types.PerformanceMetric) {
	if metric.Name == "" {
		r.logger.Debug("Dropping performance metric with empty name")
		return
	}
	if !isFinite(metric.Value) || !isFinite(metric.Threshold) {
		r.logger.WithField("metric", metric.Name).Debug("Dropping performance metric with non-finite value")
		return
	}
	if metric.Timestamp.IsZero() {
		metric.Timestamp = time.Now()
	}
	switch metric.Status {
	case types.MetricStatusGood, types.MetricStatusWarning, types.MetricStatusCritical:
	default:
		// Clamp an unknown status to the value/threshold comparison
		if metric.Value <= metric.Threshold {
			metric.Status = types.MetricStatusGood
		} else {
			metric.Status = types.MetricStatusWarning
		}
	}

	r.mu.Lock()
	if r.count < r.capacity {
		r.buffer[(r.start+r.count)%r.capacity] = metric
		r.count++
	} else {
		// Buffer cheio: descarta a métrica mais antiga (FIFO)
		r.buffer[r.start] = metric
		r.start = (r.start + 1) % r.capacity
	}
	size := r.count
	r.mu.Unlock()

	metrics.PerformanceMetricsTotal.WithLabelValues(string(metric.Status)).Inc()
	metrics.MetricBufferSize.Set(float64(size))

	r.forward(metric)
}

// forward envia a métrica aos sinks externos; falhas são absorvidas
func (r *Recorder) forward(metric types.PerformanceMetric) {
	if r.crashSink != nil {
		r.crashSink.AddBreadcrumb(types.Breadcrumb{
			Message:   fmt.Sprintf("Performance metric: %s", metric.Name),
			Level:     breadcrumbLevel(metric.Status),
			Timestamp: metric.Timestamp,
			Data: types.Context{
				"value":            types.N(metric.Value),
				"threshold":        types.N(metric.Threshold),
				"status":           types.S(string(metric.Status)),
				"cultural_context": types.B(metric.CulturalContext),
			},
		})
	}

	if r.analytics != nil {
		r.analytics.TrackEvent("performance_metric", types.Context{
			"metric_name":      types.S(metric.Name),
			"metric_value":     types.N(metric.Value),
			"metric_status":    types.S(string(metric.Status)),
			"cultural_context": types.B(metric.CulturalContext),
		})
	}
}

// Snapshot retorna uma cópia das métricas retidas, em ordem de chegada
func (r *Recorder) Snapshot() []types.PerformanceMetric {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.PerformanceMetric, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buffer[(r.start+i)%r.capacity]
	}
	return out
}

// Len retorna o número de métricas retidas
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func breadcrumbLevel(status types.MetricStatus) string {
	switch status {
	case types.MetricStatusCritical:
		return "error"
	case types.MetricStatusWarning:
		return "warning"
	default:
		return "info"
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
