// Package app faz a amarração dos componentes de monitoração: config, sinks,
// recorder, reporter, prober, engagement, coordenador de incidentes e a API
// HTTP de consulta.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"lusotown-monitoring/internal/config"
	"lusotown-monitoring/internal/engagement"
	"lusotown-monitoring/internal/incident"
	"lusotown-monitoring/internal/metrics"
	"lusotown-monitoring/internal/prober"
	"lusotown-monitoring/internal/recorder"
	"lusotown-monitoring/internal/reporter"
	"lusotown-monitoring/internal/sinks"
	"lusotown-monitoring/pkg/store"
	"lusotown-monitoring/pkg/sysprobe"
	"lusotown-monitoring/pkg/tracing"
	"lusotown-monitoring/pkg/types"

	"github.com/sirupsen/logrus"
)

// App representa o serviço de monitoração da comunidade
type App struct {
	config *types.Config
	logger *logrus.Logger

	crashSink     types.CrashSink
	analyticsSink types.AnalyticsSink
	httpCrashSink *sinks.HTTPCrashSink
	kafkaSink     *sinks.KafkaAnalyticsSink
	snapshotStore types.SnapshotStore

	recorder    *recorder.Recorder
	reporter    *reporter.Reporter
	prober      *prober.Prober
	engagement  *engagement.Aggregator
	coordinator *incident.Coordinator
	sysprobe    *sysprobe.ResourceMonitor
	tracing     *tracing.TracingManager

	httpServer    *http.Server
	metricsServer *metrics.MetricsServer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New cria uma nova instância da aplicação
func New(configFile string) (*App, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.App.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeComponents inicializa todos os componentes da aplicação
func (app *App) initializeComponents() error {
	if err := app.initializeSinks(); err != nil {
		return err
	}
	if err := app.initializeStore(); err != nil {
		return err
	}
	if err := app.initializeCoordinator(); err != nil {
		return err
	}

	// Recorder de métricas de performance
	app.recorder = recorder.New(app.logger, app.crashSink, app.analyticsSink)

	// Reporter de erros com a tabela de alertas configurada
	rules := make(map[string]reporter.AlertRule, len(app.config.Alerts.Categories))
	for category, threshold := range app.config.Alerts.Categories {
		rules[category] = reporter.AlertRule{
			Count:  threshold.Count,
			Window: config.ParseDurationSafe(threshold.Window, 5*time.Minute),
		}
	}
	app.reporter = reporter.New(app.logger, app.crashSink, app.analyticsSink, rules, app.config.Alerts.BufferSize)

	// Prober de uptime escalando falhas para o coordenador
	if app.config.Uptime.Enabled {
		app.prober = prober.New(prober.Config{
			Endpoints:         app.config.Uptime.Endpoints,
			CheckInterval:     config.ParseDurationSafe(app.config.Uptime.CheckInterval, 60*time.Second),
			RetryAttempts:     app.config.Uptime.RetryAttempts,
			RetryDelay:        config.ParseDurationSafe(app.config.Uptime.RetryDelay, time.Second),
			ProbeTimeout:      config.ParseDurationSafe(app.config.Uptime.ProbeTimeout, 10*time.Second),
			DegradedThreshold: config.ParseDurationSafe(app.config.Uptime.DegradedThreshold, 0),
			UptimeWindow:      app.config.Uptime.UptimeWindow,
		}, app.logger, nil, app.snapshotStore, app.coordinator.Trigger)
	}

	// Agregador de engajamento da comunidade
	if app.config.Engagement.Enabled {
		app.engagement = engagement.New(engagement.Config{
			Interval:   config.ParseDurationSafe(app.config.Engagement.Interval, 60*time.Second),
			ScoreFloor: app.config.Engagement.ScoreFloor,
		}, app.logger, app.reporter, app.analyticsSink)
	}

	// Watcher de recursos do host alimentando o recorder
	if app.config.Sysprobe.Enabled {
		app.sysprobe = sysprobe.New(sysprobe.Config{
			Interval:        config.ParseDurationSafe(app.config.Sysprobe.Interval, 30*time.Second),
			CPUThresholdPct: app.config.Sysprobe.CPUThresholdPct,
			MemThresholdPct: app.config.Sysprobe.MemThresholdPct,
		}, app.logger, app.recorder)
	}

	// Tracing distribuído
	tracingManager, err := tracing.NewTracingManager(app.config.Tracing, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	app.tracing = tracingManager

	// API HTTP
	app.initializeHTTPServer()

	// Servidor de métricas Prometheus
	if app.config.Metrics.Enabled {
		addr := fmt.Sprintf("0.0.0.0:%d", app.config.Metrics.Port)
		app.metricsServer = metrics.NewMetricsServer(addr, app.logger)
	}

	return nil
}

// initializeSinks inicializa os colaboradores externos de crash e analytics
func (app *App) initializeSinks() error {
	app.crashSink = sinks.NoopCrashSink{}
	app.analyticsSink = sinks.NoopAnalyticsSink{}

	if app.config.Sinks.Crash.Enabled {
		crashSink, err := sinks.NewHTTPCrashSink(app.config.Sinks.Crash, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create crash sink: %w", err)
		}
		app.httpCrashSink = crashSink
		app.crashSink = crashSink
		app.logger.Info("Crash reporting sink initialized")
	}

	if app.config.Sinks.Analytics.Enabled {
		kafkaSink, err := sinks.NewKafkaAnalyticsSink(app.config.Sinks.Analytics, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create analytics sink: %w", err)
		}
		app.kafkaSink = kafkaSink
		app.analyticsSink = kafkaSink
		app.logger.Info("Kafka analytics sink initialized")
	}

	return nil
}

// initializeStore inicializa a persistência de snapshots de uptime
func (app *App) initializeStore() error {
	switch app.config.Snapshot.Driver {
	case "sqlite":
		sqliteStore, err := store.NewSQLiteStore(app.config.Snapshot.Path)
		if err != nil {
			return fmt.Errorf("failed to open snapshot store: %w", err)
		}
		app.snapshotStore = sqliteStore
		app.logger.WithField("path", app.config.Snapshot.Path).Info("SQLite snapshot store initialized")
	default:
		app.snapshotStore = store.NewMemoryStore()
	}
	return nil
}

// initializeCoordinator monta os canais de notificação e o coordenador
func (app *App) initializeCoordinator() error {
	channels := make([]types.NotificationChannel, 0, len(app.config.Sinks.Notifications.Webhooks)+1)

	if app.config.Sinks.Notifications.LogChannelEnabled {
		channels = append(channels, sinks.NewLogChannel(app.logger))
	}
	for _, webhookConfig := range app.config.Sinks.Notifications.Webhooks {
		channel, err := sinks.NewWebhookChannel(webhookConfig, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create notification channel: %w", err)
		}
		channels = append(channels, channel)
	}

	app.coordinator = incident.New(incident.Config{
		SeverityMap:     app.config.Incidents.SeverityMap,
		DefaultSeverity: app.config.Incidents.DefaultSeverity,
		Tiers:           incident.TiersFromConfig(app.config.Incidents.Tiers),
	}, app.logger, app.crashSink, channels)

	return nil
}

// Start inicia a aplicação
func (app *App) Start() error {
	app.logger.WithFields(logrus.Fields{
		"name":        app.config.App.Name,
		"version":     app.config.App.Version,
		"environment": app.config.App.Environment,
	}).Info("Starting LusoTown monitoring service")

	if app.metricsServer != nil {
		if err := app.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	if app.httpCrashSink != nil {
		app.httpCrashSink.Start()
	}
	if app.kafkaSink != nil {
		app.kafkaSink.Start()
	}

	// Sinais de threshold do reporter viram incidentes; o roteamento é
	// explícito aqui, o reporter nunca chama o coordenador diretamente
	app.wg.Add(1)
	go app.routeBreaches()

	if app.prober != nil {
		app.prober.Start(app.ctx)
	}
	if app.engagement != nil {
		app.engagement.Start(app.ctx)
	}
	if app.sysprobe != nil {
		app.sysprobe.Start(app.ctx)
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.logger.WithField("addr", app.httpServer.Addr).Info("Starting HTTP server")
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.WithError(err).Error("HTTP server error")
		}
	}()

	metrics.ComponentHealth.WithLabelValues("app").Set(1)
	app.logger.Info("LusoTown monitoring service started successfully")
	return nil
}

// routeBreaches consome sinais de threshold e os escala como incidentes
func (app *App) routeBreaches() {
	defer app.wg.Done()

	for {
		select {
		case breach := <-app.reporter.Breaches():
			app.coordinator.Trigger(breach.Category, types.Context{
				"category":       types.S(breach.Category),
				"severity":       types.S(string(breach.Severity)),
				"count":          types.N(float64(breach.Count)),
				"window_seconds": types.N(breach.Window.Seconds()),
			})
		case <-app.ctx.Done():
			return
		}
	}
}

// Stop para a aplicação
func (app *App) Stop() error {
	app.logger.Info("Stopping LusoTown monitoring service")

	app.cancel()

	if app.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		app.httpServer.Shutdown(ctx)
		cancel()
	}

	if app.sysprobe != nil {
		app.sysprobe.Stop()
	}
	if app.engagement != nil {
		app.engagement.Stop()
	}
	if app.prober != nil {
		app.prober.Stop()
	}

	if app.kafkaSink != nil {
		app.kafkaSink.Stop()
	}
	if app.httpCrashSink != nil {
		app.httpCrashSink.Stop()
	}

	if app.snapshotStore != nil {
		if err := app.snapshotStore.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close snapshot store")
		}
	}

	if app.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := app.tracing.Shutdown(ctx); err != nil {
			app.logger.WithError(err).Error("Failed to shut down tracing")
		}
		cancel()
	}

	if app.metricsServer != nil {
		app.metricsServer.Stop()
	}

	app.wg.Wait()

	metrics.ComponentHealth.WithLabelValues("app").Set(0)
	app.logger.Info("LusoTown monitoring service stopped")
	return nil
}

// Run executa a aplicação com graceful shutdown
func (app *App) Run() error {
	if err := app.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	app.logger.Info("Shutdown signal received")

	return app.Stop()
}
