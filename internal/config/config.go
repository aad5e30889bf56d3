package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"lusotown-monitoring/pkg/types"

	"gopkg.in/yaml.v2"
)

// LoadConfig carrega a configuração a partir de arquivo YAML e variáveis de ambiente
func LoadConfig(configFile string) (*types.Config, error) {
	config := &types.Config{}

	// Se um arquivo de configuração foi especificado, carregá-lo primeiro
	if configFile != "" {
		if err := loadConfigFile(configFile, config); err != nil {
			fmt.Printf("Warning: Failed to load config file %s: %v\n", configFile, err)
		} else {
			fmt.Printf("Loaded configuration from file: %s\n", configFile)
		}
	}

	// Aplicar valores padrão e sobrescrever com variáveis de ambiente
	applyDefaults(config)
	applyEnvironmentOverrides(config)

	return config, nil
}

// loadConfigFile lê e decodifica o arquivo YAML
func loadConfigFile(configFile string, config *types.Config) error {
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", configFile)
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// applyDefaults aplica valores padrão à configuração
func applyDefaults(config *types.Config) {
	// App defaults
	if config.App.Name == "" {
		config.App.Name = "lusotown-monitoring"
	}
	if config.App.Version == "" {
		config.App.Version = "v0.1.0"
	}
	if config.App.Environment == "" {
		config.App.Environment = "production"
	}
	if config.App.LogLevel == "" {
		config.App.LogLevel = "info"
	}
	if config.App.LogFormat == "" {
		config.App.LogFormat = "json"
	}

	// Server defaults
	if config.Server.Port == 0 {
		config.Server.Port = 8402
	}
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}

	// Metrics defaults
	if config.Metrics.Port == 0 {
		config.Metrics.Port = 8002
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}
	config.Metrics.Enabled = true

	// Tracing defaults
	if config.Tracing.ServiceName == "" {
		config.Tracing.ServiceName = config.App.Name
	}
	if config.Tracing.ServiceVersion == "" {
		config.Tracing.ServiceVersion = config.App.Version
	}
	if config.Tracing.Environment == "" {
		config.Tracing.Environment = config.App.Environment
	}
	if config.Tracing.Exporter == "" {
		config.Tracing.Exporter = "otlp"
	}
	if config.Tracing.Endpoint == "" {
		config.Tracing.Endpoint = "http://localhost:4318/v1/traces"
	}
	if config.Tracing.SampleRate == 0 {
		config.Tracing.SampleRate = 1.0
	}
	if config.Tracing.BatchTimeout == "" {
		config.Tracing.BatchTimeout = "5s"
	}
	if config.Tracing.MaxBatchSize == 0 {
		config.Tracing.MaxBatchSize = 512
	}

	// Uptime prober defaults
	if config.Uptime.CheckInterval == "" {
		config.Uptime.CheckInterval = "60s"
	}
	if config.Uptime.RetryAttempts == 0 {
		config.Uptime.RetryAttempts = 3
	}
	if config.Uptime.RetryDelay == "" {
		config.Uptime.RetryDelay = "1s"
	}
	if config.Uptime.ProbeTimeout == "" {
		config.Uptime.ProbeTimeout = "10s"
	}
	if config.Uptime.UptimeWindow == 0 {
		config.Uptime.UptimeWindow = 100
	}

	// Engagement defaults
	if config.Engagement.Interval == "" {
		config.Engagement.Interval = "60s"
	}
	if config.Engagement.ScoreFloor == 0 {
		config.Engagement.ScoreFloor = 0.3
	}

	// Performance thresholds observed by the host pages
	if config.Thresholds.LanguageSwitchMs == 0 {
		config.Thresholds.LanguageSwitchMs = 500
	}
	if config.Thresholds.CulturalContentLoadMs == 0 {
		config.Thresholds.CulturalContentLoadMs = 2000
	}

	// Alert threshold table
	if config.Alerts.BufferSize == 0 {
		config.Alerts.BufferSize = 64
	}
	if len(config.Alerts.Categories) == 0 {
		config.Alerts.Categories = map[string]types.AlertThreshold{
			types.CategoryBilingualSystem:   {Count: 10, Window: "5m"},
			types.CategoryCharacterEncoding: {Count: 5, Window: "5m"},
			types.CategoryCulturalContent:   {Count: 10, Window: "10m"},
		}
	}

	// Incident classification defaults
	if len(config.Incidents.SeverityMap) == 0 {
		config.Incidents.SeverityMap = map[string]types.Severity{
			"uptime_failure": types.SeverityCritical,
		}
	}
	if config.Incidents.DefaultSeverity == "" {
		config.Incidents.DefaultSeverity = types.SeverityMedium
	}
	if len(config.Incidents.Tiers) == 0 {
		config.Incidents.Tiers = map[string][]string{
			"1": {"log"},
			"2": {"log"},
			"3": {"log"},
		}
	}

	// Sink defaults
	if config.Sinks.Crash.Timeout == "" {
		config.Sinks.Crash.Timeout = "10s"
	}
	if config.Sinks.Crash.QueueSize == 0 {
		config.Sinks.Crash.QueueSize = 1000
	}
	if config.Sinks.Crash.BreadcrumbBuffer == 0 {
		config.Sinks.Crash.BreadcrumbBuffer = 100
	}
	if config.Sinks.Analytics.Topic == "" {
		config.Sinks.Analytics.Topic = "lusotown-analytics"
	}
	if config.Sinks.Analytics.BatchSize == 0 {
		config.Sinks.Analytics.BatchSize = 100
	}
	if config.Sinks.Analytics.BatchTimeout == "" {
		config.Sinks.Analytics.BatchTimeout = "5s"
	}
	if config.Sinks.Analytics.QueueSize == 0 {
		config.Sinks.Analytics.QueueSize = 10000
	}
	if config.Sinks.Analytics.Timeout == "" {
		config.Sinks.Analytics.Timeout = "30s"
	}
	if config.Sinks.Analytics.RetryMax == 0 {
		config.Sinks.Analytics.RetryMax = 3
	}
	config.Sinks.Notifications.LogChannelEnabled = true

	// Snapshot store defaults
	if config.Snapshot.Driver == "" {
		config.Snapshot.Driver = "memory"
	}
	if config.Snapshot.Path == "" {
		config.Snapshot.Path = "/var/lib/lusotown/uptime.db"
	}

	// Sysprobe defaults
	if config.Sysprobe.Interval == "" {
		config.Sysprobe.Interval = "30s"
	}
	if config.Sysprobe.CPUThresholdPct == 0 {
		config.Sysprobe.CPUThresholdPct = 85
	}
	if config.Sysprobe.MemThresholdPct == 0 {
		config.Sysprobe.MemThresholdPct = 90
	}
}

// applyEnvironmentOverrides sobrescreve configurações com variáveis de ambiente
func applyEnvironmentOverrides(config *types.Config) {
	config.App.Environment = getEnvString("LUSOTOWN_ENVIRONMENT", config.App.Environment)
	config.App.LogLevel = getEnvString("LUSOTOWN_LOG_LEVEL", config.App.LogLevel)
	config.App.LogFormat = getEnvString("LUSOTOWN_LOG_FORMAT", config.App.LogFormat)

	config.Server.Host = getEnvString("LUSOTOWN_SERVER_HOST", config.Server.Host)
	config.Server.Port = getEnvInt("LUSOTOWN_SERVER_PORT", config.Server.Port)
	config.Metrics.Port = getEnvInt("LUSOTOWN_METRICS_PORT", config.Metrics.Port)
	config.Metrics.Enabled = getEnvBool("LUSOTOWN_METRICS_ENABLED", config.Metrics.Enabled)

	config.Uptime.Enabled = getEnvBool("LUSOTOWN_UPTIME_ENABLED", config.Uptime.Enabled)
	config.Uptime.CheckInterval = getEnvString("LUSOTOWN_UPTIME_CHECK_INTERVAL", config.Uptime.CheckInterval)
	config.Uptime.RetryAttempts = getEnvInt("LUSOTOWN_UPTIME_RETRY_ATTEMPTS", config.Uptime.RetryAttempts)
	config.Uptime.RetryDelay = getEnvString("LUSOTOWN_UPTIME_RETRY_DELAY", config.Uptime.RetryDelay)

	config.Engagement.Enabled = getEnvBool("LUSOTOWN_ENGAGEMENT_ENABLED", config.Engagement.Enabled)
	config.Engagement.Interval = getEnvString("LUSOTOWN_ENGAGEMENT_INTERVAL", config.Engagement.Interval)
	if v := getEnvString("LUSOTOWN_ENGAGEMENT_SCORE_FLOOR", ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Engagement.ScoreFloor = f
		}
	}

	config.Sinks.Crash.Enabled = getEnvBool("LUSOTOWN_CRASH_SINK_ENABLED", config.Sinks.Crash.Enabled)
	config.Sinks.Crash.URL = getEnvString("LUSOTOWN_CRASH_SINK_URL", config.Sinks.Crash.URL)
	config.Sinks.Analytics.Enabled = getEnvBool("LUSOTOWN_ANALYTICS_ENABLED", config.Sinks.Analytics.Enabled)
	if brokers := getEnvString("LUSOTOWN_ANALYTICS_BROKERS", ""); brokers != "" {
		config.Sinks.Analytics.Brokers = splitAndTrim(brokers)
	}
	config.Sinks.Analytics.Topic = getEnvString("LUSOTOWN_ANALYTICS_TOPIC", config.Sinks.Analytics.Topic)

	config.Snapshot.Driver = getEnvString("LUSOTOWN_SNAPSHOT_DRIVER", config.Snapshot.Driver)
	config.Snapshot.Path = getEnvString("LUSOTOWN_SNAPSHOT_PATH", config.Snapshot.Path)

	config.Sysprobe.Enabled = getEnvBool("LUSOTOWN_SYSPROBE_ENABLED", config.Sysprobe.Enabled)

	config.Tracing.Enabled = getEnvBool("LUSOTOWN_TRACING_ENABLED", config.Tracing.Enabled)
	config.Tracing.Endpoint = getEnvString("LUSOTOWN_TRACING_ENDPOINT", config.Tracing.Endpoint)
}

// ValidateConfig valida a configuração carregada
func ValidateConfig(config *types.Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Metrics.Enabled && (config.Metrics.Port <= 0 || config.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", config.Metrics.Port)
	}
	if config.Metrics.Enabled && config.Metrics.Port == config.Server.Port {
		return fmt.Errorf("metrics port and server port must differ: %d", config.Server.Port)
	}

	if config.Uptime.Enabled && len(config.Uptime.Endpoints) == 0 {
		return fmt.Errorf("uptime monitoring enabled but no endpoints configured")
	}
	if config.Uptime.RetryAttempts < 1 {
		return fmt.Errorf("uptime retry_attempts must be at least 1, got %d", config.Uptime.RetryAttempts)
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"uptime.check_interval", config.Uptime.CheckInterval},
		{"uptime.retry_delay", config.Uptime.RetryDelay},
		{"uptime.probe_timeout", config.Uptime.ProbeTimeout},
		{"engagement.interval", config.Engagement.Interval},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", field.name, field.value)
		}
	}

	if config.Engagement.ScoreFloor < 0 || config.Engagement.ScoreFloor > 1 {
		return fmt.Errorf("engagement score_floor must be within [0,1], got %v", config.Engagement.ScoreFloor)
	}

	if !config.Incidents.DefaultSeverity.IsValid() {
		return fmt.Errorf("invalid incidents default_severity: %q", config.Incidents.DefaultSeverity)
	}
	for incidentType, severity := range config.Incidents.SeverityMap {
		if !severity.IsValid() {
			return fmt.Errorf("invalid severity %q for incident type %q", severity, incidentType)
		}
	}
	for tier := range config.Incidents.Tiers {
		if tier != "1" && tier != "2" && tier != "3" {
			return fmt.Errorf("invalid escalation tier %q (must be 1, 2 or 3)", tier)
		}
	}

	for category, threshold := range config.Alerts.Categories {
		if threshold.Count <= 0 {
			return fmt.Errorf("alert threshold count for %q must be positive", category)
		}
		if _, err := time.ParseDuration(threshold.Window); err != nil {
			return fmt.Errorf("invalid alert window for %q: %q", category, threshold.Window)
		}
	}

	if config.Sinks.Crash.Enabled && config.Sinks.Crash.URL == "" {
		return fmt.Errorf("crash sink enabled but no URL configured")
	}
	if config.Sinks.Analytics.Enabled && len(config.Sinks.Analytics.Brokers) == 0 {
		return fmt.Errorf("analytics sink enabled but no brokers configured")
	}

	if config.Snapshot.Driver != "sqlite" && config.Snapshot.Driver != "memory" {
		return fmt.Errorf("unsupported snapshot driver: %q", config.Snapshot.Driver)
	}

	return nil
}

// ParseDurationSafe converte string de duração com fallback
func ParseDurationSafe(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
