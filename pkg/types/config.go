package types

// Config representa a configuração da aplicação
type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Uptime     UptimeConfig     `yaml:"uptime"`
	Engagement EngagementConfig `yaml:"engagement"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Incidents  IncidentsConfig  `yaml:"incidents"`
	Sinks      SinksConfig      `yaml:"sinks"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Sysprobe   SysprobeConfig   `yaml:"sysprobe"`
}

// AppConfig configurações gerais da aplicação
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// ServerConfig configurações do servidor HTTP da API
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MetricsConfig configurações do endpoint Prometheus
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// TracingConfig configures distributed tracing
type TracingConfig struct {
	Enabled        bool              `yaml:"enabled"`
	ServiceName    string            `yaml:"service_name"`
	ServiceVersion string            `yaml:"service_version"`
	Environment    string            `yaml:"environment"`
	Exporter       string            `yaml:"exporter"` // "jaeger", "otlp", "console"
	Endpoint       string            `yaml:"endpoint"`
	SampleRate     float64           `yaml:"sample_rate"`
	BatchTimeout   string            `yaml:"batch_timeout"`
	MaxBatchSize   int               `yaml:"max_batch_size"`
	Headers        map[string]string `yaml:"headers"`
}

// UptimeConfig configurações do prober de uptime
type UptimeConfig struct {
	Enabled bool `yaml:"enabled"`
	// Endpoints mapeia nome -> caminho do health check
	Endpoints     map[string]string `yaml:"endpoints"`
	CheckInterval string            `yaml:"check_interval"`
	RetryAttempts int               `yaml:"retry_attempts"`
	RetryDelay    string            `yaml:"retry_delay"`
	ProbeTimeout  string            `yaml:"probe_timeout"`
	// DegradedThreshold marks a successful probe as degraded when the
	// response time exceeds it. Empty/zero disables the degraded state.
	DegradedThreshold string `yaml:"degraded_threshold"`
	// UptimeWindow número de checks considerados no uptime percentual
	UptimeWindow int `yaml:"uptime_window"`
}

// EngagementConfig configurações do agregador de engajamento
type EngagementConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Interval   string  `yaml:"interval"`
	ScoreFloor float64 `yaml:"score_floor"`
}

// ThresholdsConfig limites de performance observados pelo host
type ThresholdsConfig struct {
	LanguageSwitchMs      float64 `yaml:"language_switch_ms"`
	CulturalContentLoadMs float64 `yaml:"cultural_content_load_ms"`
}

// AlertThreshold quantas ocorrências dentro da janela disparam escalação
type AlertThreshold struct {
	Count  int    `yaml:"count"`
	Window string `yaml:"window"`
}

// AlertsConfig tabela categoria -> limite de alerta
type AlertsConfig struct {
	Categories map[string]AlertThreshold `yaml:"categories"`
	// BufferSize tamanho do canal de sinais de threshold
	BufferSize int `yaml:"buffer_size"`
}

// IncidentsConfig regras de classificação e escalação de incidentes
type IncidentsConfig struct {
	// SeverityMap mapeia tipo de incidente -> severidade
	SeverityMap map[string]Severity `yaml:"severity_map"`
	// DefaultSeverity usada para tipos fora do mapa
	DefaultSeverity Severity `yaml:"default_severity"`
	// Tiers mapeia tier ("1".."3") -> nomes de canais de notificação
	Tiers map[string][]string `yaml:"tiers"`
}

// CrashSinkConfig configurações do sink de crash reporting HTTP
type CrashSinkConfig struct {
	Enabled          bool   `yaml:"enabled"`
	URL              string `yaml:"url"`
	Timeout          string `yaml:"timeout"`
	QueueSize        int    `yaml:"queue_size"`
	BreadcrumbBuffer int    `yaml:"breadcrumb_buffer"`
}

// AnalyticsSinkConfig configurações do sink Kafka de analytics
type AnalyticsSinkConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	Compression  string   `yaml:"compression"`
	BatchSize    int      `yaml:"batch_size"`
	BatchTimeout string   `yaml:"batch_timeout"`
	QueueSize    int      `yaml:"queue_size"`
	RequiredAcks int      `yaml:"required_acks"`
	Timeout      string   `yaml:"timeout"`
	RetryMax     int      `yaml:"retry_max"`
}

// WebhookChannelConfig canal de notificação via webhook HTTP
type WebhookChannelConfig struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"`
}

// NotificationsConfig canais de notificação disponíveis
type NotificationsConfig struct {
	Webhooks []WebhookChannelConfig `yaml:"webhooks"`
	// LogChannel sempre disponível; nome fixo "log"
	LogChannelEnabled bool `yaml:"log_channel_enabled"`
}

// SinksConfig colaboradores externos
type SinksConfig struct {
	Crash         CrashSinkConfig     `yaml:"crash"`
	Analytics     AnalyticsSinkConfig `yaml:"analytics"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// SnapshotConfig persistência do snapshot de uptime
type SnapshotConfig struct {
	Driver string `yaml:"driver"` // "sqlite" ou "memory"
	Path   string `yaml:"path"`
}

// SysprobeConfig watcher de recursos do host
type SysprobeConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Interval        string  `yaml:"interval"`
	CPUThresholdPct float64 `yaml:"cpu_threshold_pct"`
	MemThresholdPct float64 `yaml:"mem_threshold_pct"`
}
