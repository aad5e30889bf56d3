package reporter

import (
	"sync"
	"testing"
	"time"

	"lusotown-monitoring/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedException struct {
	err  error
	opts types.EventOptions
}

type fakeCrashSink struct {
	mu       sync.Mutex
	captures []capturedException
}

func (f *fakeCrashSink) CaptureException(err error, opts types.EventOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures = append(f.captures, capturedException{err: err, opts: opts})
}

func (f *fakeCrashSink) AddBreadcrumb(crumb types.Breadcrumb) {}

type fakeAnalyticsSink struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeAnalyticsSink) TrackEvent(name string, props types.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, name)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestReportSeverityMapping(t *testing.T) {
	tests := []struct {
		name          string
		severity      types.Severity
		expectedLevel string
	}{
		{name: "low maps to info", severity: types.SeverityLow, expectedLevel: "info"},
		{name: "medium maps to warning", severity: types.SeverityMedium, expectedLevel: "warning"},
		{name: "high maps to error", severity: types.SeverityHigh, expectedLevel: "error"},
		{name: "critical maps to fatal", severity: types.SeverityCritical, expectedLevel: "fatal"},
		{name: "invalid defaults to medium", severity: "catastrophic", expectedLevel: "warning"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crashSink := &fakeCrashSink{}
			r := New(testLogger(), crashSink, nil, nil, 0)

			r.Report(ErrorReport{
				Message:  "something broke",
				Severity: tt.severity,
				Category: types.CategoryBilingualSystem,
			})

			require.Len(t, crashSink.captures, 1)
			assert.Equal(t, tt.expectedLevel, crashSink.captures[0].opts.Level)
			assert.Equal(t, "something broke", crashSink.captures[0].err.Error())
		})
	}
}

func TestReportDefaultsAndTags(t *testing.T) {
	crashSink := &fakeCrashSink{}
	analytics := &fakeAnalyticsSink{}
	r := New(testLogger(), crashSink, analytics, nil, 0)

	r.Report(ErrorReport{
		Severity: types.SeverityHigh,
		CulturalContext: &types.CulturalContext{
			Language:        types.LanguagePortuguese,
			CulturalFeature: "fado_events",
		},
	})

	require.Len(t, crashSink.captures, 1)
	capture := crashSink.captures[0]
	assert.Equal(t, "(no message)", capture.err.Error())
	assert.Equal(t, "uncategorized", capture.opts.Tags["category"])
	assert.Equal(t, "portuguese-speaking", capture.opts.Tags["community"])
	assert.Equal(t, "pt", capture.opts.Tags["language"])
	assert.Equal(t, "fado_events", capture.opts.Tags["cultural_feature"])

	payload, ok := capture.opts.Contexts["lusotown"]
	require.True(t, ok)
	assert.Equal(t, "pt", payload["language"].String())

	require.Len(t, analytics.events, 1)
	assert.Equal(t, "error_boundary", analytics.events[0])
}

func TestReportNeverPanics(t *testing.T) {
	// Sem sinks, sem regras: Report ainda precisa ser seguro
	r := New(testLogger(), nil, nil, nil, 0)
	assert.NotPanics(t, func() {
		r.Report(ErrorReport{})
		r.Report(ErrorReport{Message: "x", Severity: "???", Category: ""})
	})
}

func TestThresholdBreachEmission(t *testing.T) {
	rules := map[string]AlertRule{
		types.CategoryCharacterEncoding: {Count: 3, Window: time.Minute},
	}
	r := New(testLogger(), nil, nil, rules, 8)

	base := time.Now()
	current := base
	r.now = func() time.Time { return current }

	report := ErrorReport{
		Message:  "mojibake detected",
		Severity: types.SeverityHigh,
		Category: types.CategoryCharacterEncoding,
	}

	r.Report(report)
	r.Report(report)
	assert.Len(t, r.breaches, 0)

	r.Report(report)
	require.Len(t, r.breaches, 1)

	breach := <-r.breaches
	assert.Equal(t, types.CategoryCharacterEncoding, breach.Category)
	assert.Equal(t, types.SeverityHigh, breach.Severity)
	assert.Equal(t, 3, breach.Count)
	assert.Equal(t, time.Minute, breach.Window)

	// O bucket é limpo no disparo: mais dois reports ainda não cruzam o limite
	r.Report(report)
	r.Report(report)
	assert.Len(t, r.breaches, 0)

	r.Report(report)
	assert.Len(t, r.breaches, 1)
}

func TestThresholdWindowPruning(t *testing.T) {
	rules := map[string]AlertRule{
		types.CategoryBilingualSystem: {Count: 3, Window: time.Minute},
	}
	r := New(testLogger(), nil, nil, rules, 8)

	current := time.Now()
	r.now = func() time.Time { return current }

	report := ErrorReport{Message: "boom", Severity: types.SeverityMedium, Category: types.CategoryBilingualSystem}

	r.Report(report)
	r.Report(report)

	// Ocorrências antigas saem da janela antes do terceiro report
	current = current.Add(2 * time.Minute)
	r.Report(report)
	assert.Len(t, r.breaches, 0)
}

func TestBreachChannelDropsWhenFull(t *testing.T) {
	rules := map[string]AlertRule{
		"flood": {Count: 1, Window: time.Minute},
	}
	r := New(testLogger(), nil, nil, rules, 0)
	// Buffer mínimo aplicado pelo construtor
	require.Equal(t, 64, cap(r.breaches))

	report := ErrorReport{Message: "x", Severity: types.SeverityLow, Category: "flood"}
	// Nunca bloqueia, mesmo estourando o buffer sem consumidor
	assert.NotPanics(t, func() {
		for i := 0; i < 100; i++ {
			r.Report(report)
		}
	})
	assert.Len(t, r.breaches, 64)
}

func TestUnknownCategoryNeverBreaches(t *testing.T) {
	r := New(testLogger(), nil, nil, map[string]AlertRule{}, 4)
	for i := 0; i < 20; i++ {
		r.Report(ErrorReport{Message: "x", Severity: types.SeverityLow, Category: "unlisted"})
	}
	assert.Len(t, r.breaches, 0)
}
