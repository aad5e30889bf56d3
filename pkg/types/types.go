package types

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"time"
)

// Severity classifica a gravidade de um evento reportado
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SentryLevel maps a severity to the crash sink's native level
func (s Severity) SentryLevel() string {
	switch s {
	case SeverityLow:
		return "info"
	case SeverityMedium:
		return "warning"
	case SeverityHigh:
		return "error"
	case SeverityCritical:
		return "fatal"
	default:
		return "error"
	}
}

// IsValid reports whether the severity is one of the four known levels
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Error categories used across the platform. The category field itself is
// free-form; these are the ones the host application emits today.
const (
	CategoryBilingualSystem     = "bilingual_system"
	CategoryCharacterEncoding   = "character_encoding"
	CategoryUptimeMonitoring    = "uptime_monitoring"
	CategoryCommunityEngagement = "community_engagement"
	CategoryCulturalContent     = "cultural_content"
	CategoryMobileExperience    = "mobile_experience"
)

// Language preferência de idioma associada a um evento
type Language string

const (
	LanguageEnglish    Language = "en"
	LanguagePortuguese Language = "pt"
)

// CulturalContext tags an event with bilingual/community metadata so
// observability data can be segmented per community
type CulturalContext struct {
	Language         Language `json:"language"`
	CulturalFeature  string   `json:"cultural_feature,omitempty"`
	CommunitySegment string   `json:"community_segment,omitempty"`
	MobileDevice     bool     `json:"mobile_device,omitempty"`
}

// MonitoringEvent é o registro imutável de um problema reportado
type MonitoringEvent struct {
	ID              string           `json:"id"`
	Timestamp       time.Time        `json:"timestamp"`
	Severity        Severity         `json:"severity"`
	Category        string           `json:"category"`
	Message         string           `json:"message"`
	Context         Context          `json:"context"`
	CulturalContext *CulturalContext `json:"cultural_context,omitempty"`
}

// MetricStatus resultado da comparação valor vs. threshold
type MetricStatus string

const (
	MetricStatusGood     MetricStatus = "good"
	MetricStatusWarning  MetricStatus = "warning"
	MetricStatusCritical MetricStatus = "critical"
)

// PerformanceMetric uma medição pontual de desempenho
type PerformanceMetric struct {
	Name            string       `json:"name"`
	Value           float64      `json:"value"`
	Threshold       float64      `json:"threshold"`
	Status          MetricStatus `json:"status"`
	Timestamp       time.Time    `json:"timestamp"`
	CulturalContext bool         `json:"cultural_context,omitempty"`
}

// EndpointStatus estado de saúde de um endpoint monitorado
type EndpointStatus string

const (
	EndpointUp       EndpointStatus = "up"
	EndpointDown     EndpointStatus = "down"
	EndpointDegraded EndpointStatus = "degraded"
)

// UptimeStatus latest known health of one monitored endpoint.
// Exactly one live record exists per endpoint name.
type UptimeStatus struct {
	Endpoint      string         `json:"endpoint"`
	Status        EndpointStatus `json:"status"`
	ResponseTime  int64          `json:"response_time_ms"`
	LastCheck     time.Time      `json:"last_check"`
	UptimePercent float64        `json:"uptime_percent"`
}

// CommunityMetrics snapshot dos contadores de engajamento da comunidade.
// Counters increment monotonically; EngagementScore is derived, never set
// directly.
type CommunityMetrics struct {
	ActiveUsers               int64   `json:"active_users"`
	PortugueseSpeakers        int64   `json:"portuguese_speakers"`
	BilingualSwitches         int64   `json:"bilingual_switches"`
	CulturalContentViews      int64   `json:"cultural_content_views"`
	BusinessDirectorySearches int64   `json:"business_directory_searches"`
	EventBookings             int64   `json:"event_bookings"`
	MobileUsageEvents         int64   `json:"mobile_usage_events"`
	EngagementScore           float64 `json:"engagement_score"`
}

// Incident uma falha escalada pelo coordenador de incidentes
type Incident struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Context   Context   `json:"context"`
	Severity  Severity  `json:"severity"`
}

// EscalationTier notification fan-out level, 1 (narrow) to 3 (broadest)
type EscalationTier int

const (
	EscalationTier1 EscalationTier = 1
	EscalationTier2 EscalationTier = 2
	EscalationTier3 EscalationTier = 3
)

// TierForSeverity selects the escalation tier for a given incident severity
func TierForSeverity(s Severity) EscalationTier {
	switch s {
	case SeverityCritical:
		return EscalationTier3
	case SeverityHigh:
		return EscalationTier2
	default:
		return EscalationTier1
	}
}

// ThresholdBreach sinal emitido pelo reporter quando uma categoria cruza o
// limite de alertas dentro da janela configurada. O chamador decide se o
// sinal vira incidente.
type ThresholdBreach struct {
	Category string        `json:"category"`
	Severity Severity      `json:"severity"`
	Count    int           `json:"count"`
	Window   time.Duration `json:"window"`
}

const eventIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewEventID generates a collision-resistant event identifier in the form
// lusotown_<unix-millis>_<9 random base36 chars>
func NewEventID() string {
	suffix := make([]byte, 9)
	max := big.NewInt(int64(len(eventIDAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing is effectively unreachable; fall back to a
			// fixed char rather than propagating an error from ID generation
			suffix[i] = '0'
			continue
		}
		suffix[i] = eventIDAlphabet[n.Int64()]
	}
	return fmt.Sprintf("lusotown_%d_%s", time.Now().UnixMilli(), suffix)
}

// Breadcrumb trilha curta enviada ao crash sink junto com capturas futuras
type Breadcrumb struct {
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	Data      Context   `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventOptions metadata attached to a crash sink capture
type EventOptions struct {
	Level    string             `json:"level"`
	Tags     map[string]string  `json:"tags,omitempty"`
	Contexts map[string]Context `json:"contexts,omitempty"`
}

// CrashSink destino externo de crash reporting (Sentry-like)
type CrashSink interface {
	CaptureException(err error, opts EventOptions)
	AddBreadcrumb(crumb Breadcrumb)
}

// AnalyticsSink destino externo de eventos de analytics
type AnalyticsSink interface {
	TrackEvent(name string, props Context)
}

// SnapshotStore key-value store used as a convenience cache for uptime
// snapshots between probe cycles. Not authoritative.
type SnapshotStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Close() error
}

// NotificationChannel delivers incident alerts. Delivery mechanics are the
// channel's concern; the coordinator only picks the tier.
type NotificationChannel interface {
	Name() string
	Notify(ctx context.Context, incident Incident, tier EscalationTier) error
}

// Doer abstracts the HTTP client used by the uptime prober
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}
