package recorder

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"lusotown-monitoring/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCrashSink struct {
	mu     sync.Mutex
	crumbs []types.Breadcrumb
}

func (f *fakeCrashSink) CaptureException(err error, opts types.EventOptions) {}

func (f *fakeCrashSink) AddBreadcrumb(crumb types.Breadcrumb) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.crumbs = append(f.crumbs, crumb)
}

type trackedEvent struct {
	name  string
	props types.Context
}

type fakeAnalyticsSink struct {
	mu     sync.Mutex
	events []trackedEvent
}

func (f *fakeAnalyticsSink) TrackEvent(name string, props types.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, trackedEvent{name: name, props: props})
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestRecordKeepsBufferBounded(t *testing.T) {
	r := NewWithCapacity(testLogger(), nil, nil, 5)

	for i := 1; i <= 8; i++ {
		r.Record(types.PerformanceMetric{
			Name:      fmt.Sprintf("metric_%d", i),
			Value:     float64(i),
			Threshold: 100,
		})
	}

	require.Equal(t, 5, r.Len())

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 5)
	// As mais antigas (1..3) foram descartadas; ordem de chegada preservada
	for i, metric := range snapshot {
		assert.Equal(t, fmt.Sprintf("metric_%d", i+4), metric.Name)
	}
}

func TestRecordDefaultCapacity(t *testing.T) {
	r := New(testLogger(), nil, nil)

	for i := 0; i < DefaultCapacity+50; i++ {
		r.Record(types.PerformanceMetric{
			Name:      fmt.Sprintf("metric_%d", i),
			Value:     1,
			Threshold: 2,
		})
	}

	assert.Equal(t, DefaultCapacity, r.Len())
	snapshot := r.Snapshot()
	assert.Equal(t, "metric_50", snapshot[0].Name)
	assert.Equal(t, fmt.Sprintf("metric_%d", DefaultCapacity+49), snapshot[len(snapshot)-1].Name)
}

func TestRecordDropsMalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		metric types.PerformanceMetric
	}{
		{
			name:   "empty name",
			metric: types.PerformanceMetric{Value: 1, Threshold: 2},
		},
		{
			name:   "NaN value",
			metric: types.PerformanceMetric{Name: "m", Value: math.NaN(), Threshold: 2},
		},
		{
			name:   "infinite threshold",
			metric: types.PerformanceMetric{Name: "m", Value: 1, Threshold: math.Inf(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewWithCapacity(testLogger(), nil, nil, 10)
			// Nunca deve entrar em pânico nem reter a métrica
			r.Record(tt.metric)
			assert.Equal(t, 0, r.Len())
		})
	}
}

func TestRecordStatusDerivation(t *testing.T) {
	tests := []struct {
		name     string
		metric   types.PerformanceMetric
		expected types.MetricStatus
	}{
		{
			name:     "unknown status within threshold",
			metric:   types.PerformanceMetric{Name: "m", Value: 100, Threshold: 500, Status: "bogus"},
			expected: types.MetricStatusGood,
		},
		{
			name:     "unknown status above threshold",
			metric:   types.PerformanceMetric{Name: "m", Value: 900, Threshold: 500},
			expected: types.MetricStatusWarning,
		},
		{
			name:     "explicit status preserved",
			metric:   types.PerformanceMetric{Name: "m", Value: 100, Threshold: 500, Status: types.MetricStatusCritical},
			expected: types.MetricStatusCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewWithCapacity(testLogger(), nil, nil, 10)
			r.Record(tt.metric)

			snapshot := r.Snapshot()
			require.Len(t, snapshot, 1)
			assert.Equal(t, tt.expected, snapshot[0].Status)
			assert.False(t, snapshot[0].Timestamp.IsZero())
		})
	}
}

func TestRecordForwardsToSinks(t *testing.T) {
	crashSink := &fakeCrashSink{}
	analytics := &fakeAnalyticsSink{}
	r := NewWithCapacity(testLogger(), crashSink, analytics, 10)

	r.Record(types.PerformanceMetric{
		Name:            "language_switch_time",
		Value:           650,
		Threshold:       500,
		Timestamp:       time.Now(),
		CulturalContext: true,
	})

	require.Len(t, crashSink.crumbs, 1)
	assert.Equal(t, "Performance metric: language_switch_time", crashSink.crumbs[0].Message)
	assert.Equal(t, "warning", crashSink.crumbs[0].Level)
	assert.Equal(t, 650.0, crashSink.crumbs[0].Data["value"].Number())

	require.Len(t, analytics.events, 1)
	assert.Equal(t, "performance_metric", analytics.events[0].name)
	assert.Equal(t, "language_switch_time", analytics.events[0].props["metric_name"].String())
	assert.True(t, analytics.events[0].props["cultural_context"].Bool())
}
