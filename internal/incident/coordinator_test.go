package incident

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lusotown-monitoring/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notifiedIncident struct {
	incident types.Incident
	tier     types.EscalationTier
}

type fakeChannel struct {
	name string
	err  error

	mu       sync.Mutex
	notified []notifiedIncident
}

func (fc *fakeChannel) Name() string { return fc.name }

func (fc *fakeChannel) Notify(_ context.Context, incident types.Incident, tier types.EscalationTier) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.notified = append(fc.notified, notifiedIncident{incident: incident, tier: tier})
	return fc.err
}

type fakeCrashSink struct {
	mu       sync.Mutex
	captures []types.EventOptions
}

func (f *fakeCrashSink) CaptureException(err error, opts types.EventOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures = append(f.captures, opts)
}

func (f *fakeCrashSink) AddBreadcrumb(crumb types.Breadcrumb) {}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestTriggerSeverityClassification(t *testing.T) {
	tests := []struct {
		name             string
		incidentType     string
		expectedSeverity types.Severity
		expectedTier     types.EscalationTier
	}{
		{
			name:             "mapped critical type",
			incidentType:     "uptime_failure",
			expectedSeverity: types.SeverityCritical,
			expectedTier:     types.EscalationTier3,
		},
		{
			name:             "mapped high type",
			incidentType:     "character_encoding",
			expectedSeverity: types.SeverityHigh,
			expectedTier:     types.EscalationTier2,
		},
		{
			name:             "unmapped type uses default",
			incidentType:     "something_new",
			expectedSeverity: types.SeverityMedium,
			expectedTier:     types.EscalationTier1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channel := &fakeChannel{name: "log"}
			c := New(Config{
				SeverityMap: map[string]types.Severity{
					"uptime_failure":     types.SeverityCritical,
					"character_encoding": types.SeverityHigh,
				},
				DefaultSeverity: types.SeverityMedium,
				Tiers: map[types.EscalationTier][]string{
					types.EscalationTier1: {"log"},
					types.EscalationTier2: {"log"},
					types.EscalationTier3: {"log"},
				},
			}, testLogger(), nil, []types.NotificationChannel{channel})

			c.Trigger(tt.incidentType, nil)

			require.Len(t, channel.notified, 1)
			assert.Equal(t, tt.expectedSeverity, channel.notified[0].incident.Severity)
			assert.Equal(t, tt.expectedTier, channel.notified[0].tier)
			assert.NotEmpty(t, channel.notified[0].incident.ID)
		})
	}
}

func TestTriggerTierFanOut(t *testing.T) {
	logCh := &fakeChannel{name: "log"}
	oncall := &fakeChannel{name: "oncall"}
	c := New(Config{
		SeverityMap:     map[string]types.Severity{"uptime_failure": types.SeverityCritical},
		DefaultSeverity: types.SeverityLow,
		Tiers: map[types.EscalationTier][]string{
			types.EscalationTier1: {"log"},
			types.EscalationTier3: {"log", "oncall"},
		},
	}, testLogger(), nil, []types.NotificationChannel{logCh, oncall})

	c.Trigger("uptime_failure", nil)

	// Tier 3 notifica os dois canais
	assert.Len(t, logCh.notified, 1)
	assert.Len(t, oncall.notified, 1)

	c.Trigger("minor_thing", nil)

	// Tier 1 notifica apenas o log
	assert.Len(t, logCh.notified, 2)
	assert.Len(t, oncall.notified, 1)
}

func TestTriggerBestEffortDispatch(t *testing.T) {
	failing := &fakeChannel{name: "webhook", err: errors.New("connection refused")}
	healthy := &fakeChannel{name: "log"}
	c := New(Config{
		SeverityMap:     map[string]types.Severity{"uptime_failure": types.SeverityCritical},
		DefaultSeverity: types.SeverityMedium,
		Tiers: map[types.EscalationTier][]string{
			types.EscalationTier3: {"webhook", "log"},
		},
	}, testLogger(), nil, []types.NotificationChannel{failing, healthy})

	// Falha de um canal não interrompe os demais nem propaga erro
	assert.NotPanics(t, func() {
		c.Trigger("uptime_failure", nil)
	})
	assert.Len(t, failing.notified, 1)
	assert.Len(t, healthy.notified, 1)
}

func TestTriggerUnknownChannelSkipped(t *testing.T) {
	channel := &fakeChannel{name: "log"}
	c := New(Config{
		DefaultSeverity: types.SeverityMedium,
		Tiers: map[types.EscalationTier][]string{
			types.EscalationTier1: {"ghost", "log"},
		},
	}, testLogger(), nil, []types.NotificationChannel{channel})

	c.Trigger("anything", nil)
	assert.Len(t, channel.notified, 1)
}

func TestTriggerReportsToCrashSink(t *testing.T) {
	crashSink := &fakeCrashSink{}
	c := New(Config{
		SeverityMap:     map[string]types.Severity{"uptime_failure": types.SeverityCritical},
		DefaultSeverity: types.SeverityMedium,
	}, testLogger(), crashSink, nil)

	incidentCtx := types.Context{"endpoint": types.S("homepage")}
	c.Trigger("uptime_failure", incidentCtx)

	require.Len(t, crashSink.captures, 1)
	capture := crashSink.captures[0]
	assert.Equal(t, "uptime_failure", capture.Tags["incident_type"])
	assert.Equal(t, "critical", capture.Tags["severity"])
	assert.Equal(t, "homepage", capture.Contexts["incident"]["endpoint"].String())
}

func TestTiersFromConfig(t *testing.T) {
	tiers := TiersFromConfig(map[string][]string{
		"1":  {"log"},
		"3":  {"log", "oncall"},
		"0":  {"ignored"},
		"4":  {"ignored"},
		"xx": {"ignored"},
	})

	require.Len(t, tiers, 2)
	assert.Equal(t, []string{"log"}, tiers[types.EscalationTier1])
	assert.Equal(t, []string{"log", "oncall"}, tiers[types.EscalationTier3])
}
