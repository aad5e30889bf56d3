// Package engagement accumulates community activity counters and derives a
// single engagement score from them on a fixed interval.
package engagement

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"lusotown-monitoring/internal/metrics"
	"lusotown-monitoring/internal/reporter"
	"lusotown-monitoring/pkg/types"

	"github.com/sirupsen/logrus"
)

// Reporter caminho de report usado quando o score cai abaixo do piso
type Reporter interface {
	Report(report reporter.ErrorReport)
}

// Config configurações do agregador
type Config struct {
	Interval   time.Duration
	ScoreFloor float64
}

// Aggregator singleton mutável de contadores de engajamento. Contadores só
// crescem (até reinício do processo); o score é derivado, nunca atribuído
// diretamente.
type Aggregator struct {
	config    Config
	logger    *logrus.Logger
	reporter  Reporter
	analytics types.AnalyticsSink

	activeUsers               atomic.Int64
	portugueseSpeakers        atomic.Int64
	bilingualSwitches         atomic.Int64
	culturalContentViews      atomic.Int64
	businessDirectorySearches atomic.Int64
	eventBookings             atomic.Int64
	mobileUsageEvents         atomic.Int64

	// score em bits de float64 para leitura atômica
	scoreBits atomic.Uint64

	runMu     sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New cria um agregador de engajamento
func New(config Config, logger *logrus.Logger, rep Reporter, analytics types.AnalyticsSink) *Aggregator {
	if config.Interval <= 0 {
		config.Interval = 60 * time.Second
	}
	return &Aggregator{
		config:    config,
		logger:    logger,
		reporter:  rep,
		analytics: analytics,
	}
}

// Instrumentation hooks. Each one increments exactly one counter.

// RecordBilingualSwitch conta uma troca de idioma concluída
func (a *Aggregator) RecordBilingualSwitch() { a.bilingualSwitches.Add(1) }

// RecordCulturalContentView conta uma visualização de conteúdo cultural
func (a *Aggregator) RecordCulturalContentView() { a.culturalContentViews.Add(1) }

// RecordBusinessSearch conta uma busca concluída no diretório de negócios
func (a *Aggregator) RecordBusinessSearch() { a.businessDirectorySearches.Add(1) }

// RecordEventBooking conta uma reserva de evento concluída
func (a *Aggregator) RecordEventBooking() { a.eventBookings.Add(1) }

// RecordMobileInteraction conta uma interação móvel com conteúdo da comunidade
func (a *Aggregator) RecordMobileInteraction() { a.mobileUsageEvents.Add(1) }

// RecordPortugueseSpeaker conta um usuário que definiu preferência pt
func (a *Aggregator) RecordPortugueseSpeaker() { a.portugueseSpeakers.Add(1) }

// RecordActiveUser conta um usuário ativo
func (a *Aggregator) RecordActiveUser() { a.activeUsers.Add(1) }

// SetActiveUsers define o número corrente de usuários ativos (alimentado
// pela plataforma hospedeira)
func (a *Aggregator) SetActiveUsers(n int64) {
	if n < 0 {
		return
	}
	a.activeUsers.Store(n)
}

// Start agenda o recálculo periódico do score. Chamadas repetidas são no-op.
func (a *Aggregator) Start(ctx context.Context) {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.isRunning {
		return
	}
	a.isRunning = true

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.Recompute()
			case <-runCtx.Done():
				return
			}
		}
	}()

	a.logger.WithFields(logrus.Fields{
		"interval":    a.config.Interval,
		"score_floor": a.config.ScoreFloor,
	}).Info("Community engagement tracking started")
}

// Stop cancela o recálculo periódico. Idempotente.
func (a *Aggregator) Stop() {
	a.runMu.Lock()
	if !a.isRunning {
		a.runMu.Unlock()
		return
	}
	a.isRunning = false
	cancel := a.cancel
	a.runMu.Unlock()

	cancel()
	a.wg.Wait()
}

// Recompute recalcula o score de engajamento a partir dos contadores.
// Idempotente: contadores inalterados produzem o mesmo score.
func (a *Aggregator) Recompute() float64 {
	snapshot := a.Metrics()

	// Divisor nunca é zero: plataformas vazias contam como um usuário
	totalUsers := snapshot.ActiveUsers
	if totalUsers < 1 {
		totalUsers = 1
	}
	users := float64(totalUsers)

	factors := [5]float64{
		float64(snapshot.BilingualSwitches) / users,
		float64(snapshot.CulturalContentViews) / users,
		float64(snapshot.BusinessDirectorySearches) / users,
		float64(snapshot.EventBookings) / users,
		float64(snapshot.MobileUsageEvents) / users,
	}

	sum := 0.0
	for _, f := range factors {
		sum += f
	}
	score := sum / float64(len(factors))
	score = math.Min(math.Max(score, 0), 1)

	a.scoreBits.Store(math.Float64bits(score))
	metrics.EngagementScore.Set(score)

	if score < a.config.ScoreFloor && a.reporter != nil {
		// Report, não incidente: queda de engajamento não escala sozinha
		a.reporter.Report(reporter.ErrorReport{
			Message:  "Community engagement below threshold",
			Severity: types.SeverityMedium,
			Category: types.CategoryCommunityEngagement,
			Context: types.Context{
				"current_score": types.N(score),
				"threshold":     types.N(a.config.ScoreFloor),
				"metrics": types.M(types.Context{
					"active_users":                types.N(float64(snapshot.ActiveUsers)),
					"portuguese_speakers":         types.N(float64(snapshot.PortugueseSpeakers)),
					"bilingual_switches":          types.N(float64(snapshot.BilingualSwitches)),
					"cultural_content_views":      types.N(float64(snapshot.CulturalContentViews)),
					"business_directory_searches": types.N(float64(snapshot.BusinessDirectorySearches)),
					"event_bookings":              types.N(float64(snapshot.EventBookings)),
					"mobile_usage_events":         types.N(float64(snapshot.MobileUsageEvents)),
				}),
			},
		})
	}

	if a.analytics != nil {
		a.analytics.TrackEvent("performance_metric", types.Context{
			"metric_name":       types.S("community_engagement"),
			"metric_value":      types.N(score),
			"community_segment": types.S("portuguese"),
		})
	}

	return score
}

// Metrics retorna um snapshot dos contadores e do último score derivado
func (a *Aggregator) Metrics() types.CommunityMetrics {
	return types.CommunityMetrics{
		ActiveUsers:               a.activeUsers.Load(),
		PortugueseSpeakers:        a.portugueseSpeakers.Load(),
		BilingualSwitches:         a.bilingualSwitches.Load(),
		CulturalContentViews:      a.culturalContentViews.Load(),
		BusinessDirectorySearches: a.businessDirectorySearches.Load(),
		EventBookings:             a.eventBookings.Load(),
		MobileUsageEvents:         a.mobileUsageEvents.Load(),
		EngagementScore:           math.Float64frombits(a.scoreBits.Load()),
	}
}
