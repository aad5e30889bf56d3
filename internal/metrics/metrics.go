package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// Counter para erros reportados
	ErrorsReportedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lusotown_errors_reported_total",
			Help: "Total number of errors reported to the monitoring core",
		},
		[]string{"category", "severity"},
	)

	// Counter para métricas de performance registradas
	PerformanceMetricsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lusotown_performance_metrics_total",
			Help: "Total number of performance metrics recorded",
		},
		[]string{"status"},
	)

	// Gauge para ocupação do ring buffer de métricas
	MetricBufferSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lusotown_metric_buffer_size",
			Help: "Current number of performance metrics held in the ring buffer",
		},
	)

	// Histograma para duração dos probes de uptime
	ProbeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lusotown_probe_duration_seconds",
			Help:    "Time spent probing endpoint health",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"endpoint"},
	)

	// Gauge para estado dos endpoints (1 = up, 0 = down, 0.5 = degraded)
	EndpointUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lusotown_endpoint_up",
			Help: "Endpoint health (1 = up, 0.5 = degraded, 0 = down)",
		},
		[]string{"endpoint"},
	)

	// Gauge para uptime percentual
	RollingUptimePercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lusotown_rolling_uptime_percent",
			Help: "Rolling uptime percentage per endpoint",
		},
		[]string{"endpoint"},
	)

	// Counter para falhas de probe (após esgotar retries)
	ProbeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lusotown_probe_failures_total",
			Help: "Total number of probe cycles that exhausted all retry attempts",
		},
		[]string{"endpoint"},
	)

	// Gauge para o score de engajamento da comunidade
	EngagementScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lusotown_community_engagement_score",
			Help: "Derived community engagement score (0.0 to 1.0)",
		},
	)

	// Counter para incidentes escalados
	IncidentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lusotown_incidents_total",
			Help: "Total number of incidents escalated by the coordinator",
		},
		[]string{"type", "severity"},
	)

	// Counter para falhas de entrega em sinks/canais externos
	SinkErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lusotown_sink_errors_total",
			Help: "Total number of delivery failures to external sinks and channels",
		},
		[]string{"sink", "error_type"},
	)

	// Counter para eventos de analytics emitidos
	AnalyticsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lusotown_analytics_events_total",
			Help: "Total number of analytics events emitted",
		},
		[]string{"event"},
	)

	// Counter para sinais de threshold cruzado
	ThresholdBreachesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lusotown_threshold_breaches_total",
			Help: "Total number of alert-threshold breaches emitted by the reporter",
		},
		[]string{"category"},
	)

	// Gauge para status de saúde dos componentes
	ComponentHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lusotown_component_health",
			Help: "Health status of components (1 = healthy, 0 = unhealthy)",
		},
		[]string{"component"},
	)
)

// MetricsServer servidor HTTP para métricas Prometheus
type MetricsServer struct {
	server *http.Server
	logger *logrus.Logger
}

// NewMetricsServer cria um novo servidor de métricas
func NewMetricsServer(addr string, logger *logrus.Logger) *MetricsServer {
	Register(prometheus.DefaultRegisterer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger,
	}
}

// Register registra os coletores no registerer fornecido. Registro duplicado
// é ignorado para permitir instâncias múltiplas em testes.
func Register(registerer prometheus.Registerer) {
	collectors := []prometheus.Collector{
		ErrorsReportedTotal,
		PerformanceMetricsTotal,
		MetricBufferSize,
		ProbeDuration,
		EndpointUp,
		RollingUptimePercent,
		ProbeFailuresTotal,
		EngagementScore,
		IncidentsTotal,
		SinkErrorsTotal,
		AnalyticsEventsTotal,
		ThresholdBreachesTotal,
		ComponentHealth,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}

// Start inicia o servidor de métricas
func (ms *MetricsServer) Start() error {
	ms.logger.WithField("addr", ms.server.Addr).Info("Starting metrics server")

	go func() {
		if err := ms.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ms.logger.WithError(err).Error("Metrics server error")
		}
	}()

	return nil
}

// Stop para o servidor de métricas
func (ms *MetricsServer) Stop() error {
	ms.logger.Info("Stopping metrics server")
	return ms.server.Close()
}

// RecordSinkError registra falha de entrega em um colaborador externo
func RecordSinkError(sink, errorType string) {
	SinkErrorsTotal.WithLabelValues(sink, errorType).Inc()
}
