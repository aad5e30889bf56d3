package sinks

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"lusotown-monitoring/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestNewHTTPCrashSinkRequiresURL(t *testing.T) {
	_, err := NewHTTPCrashSink(types.CrashSinkConfig{Enabled: true}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no URL configured")
}

func TestCaptureExceptionDelivery(t *testing.T) {
	received := make(chan crashEnvelope, 10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var envelope crashEnvelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		received <- envelope
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink, err := NewHTTPCrashSink(types.CrashSinkConfig{
		Enabled:          true,
		URL:              server.URL,
		QueueSize:        10,
		BreadcrumbBuffer: 10,
	}, testLogger())
	require.NoError(t, err)

	sink.Start()
	defer sink.Stop()

	sink.AddBreadcrumb(types.Breadcrumb{Message: "Performance metric: page_load", Level: "info"})
	sink.AddBreadcrumb(types.Breadcrumb{Message: "Performance metric: language_switch", Level: "warning"})

	sink.CaptureException(errors.New("bilingual toggle failed"), types.EventOptions{
		Level: "error",
		Tags:  map[string]string{"category": "bilingual_system", "community": "portuguese-speaking"},
		Contexts: map[string]types.Context{
			"lusotown": {"page": types.S("/events")},
		},
	})

	select {
	case envelope := <-received:
		assert.Equal(t, "bilingual toggle failed", envelope.Error)
		assert.Equal(t, "error", envelope.Level)
		assert.Equal(t, "bilingual_system", envelope.Tags["category"])
		assert.Equal(t, "/events", envelope.Contexts["lusotown"]["page"].String())
		// A captura carrega os breadcrumbs acumulados
		require.Len(t, envelope.Breadcrumbs, 2)
		assert.Equal(t, "Performance metric: page_load", envelope.Breadcrumbs[0].Message)
	case <-time.After(3 * time.Second):
		t.Fatal("crash envelope was not delivered")
	}

	// O buffer de breadcrumbs é drenado na captura: a próxima vai vazia
	sink.CaptureException(errors.New("second"), types.EventOptions{Level: "warning"})

	select {
	case envelope := <-received:
		assert.Empty(t, envelope.Breadcrumbs)
	case <-time.After(3 * time.Second):
		t.Fatal("second crash envelope was not delivered")
	}
}

func TestCaptureExceptionNilError(t *testing.T) {
	sink, err := NewHTTPCrashSink(types.CrashSinkConfig{URL: "http://localhost:1"}, testLogger())
	require.NoError(t, err)

	sink.CaptureException(nil, types.EventOptions{})
	assert.Empty(t, sink.queue)
}

func TestCaptureExceptionNeverBlocksWhenQueueFull(t *testing.T) {
	sink, err := NewHTTPCrashSink(types.CrashSinkConfig{
		URL:       "http://localhost:1",
		QueueSize: 2,
	}, testLogger())
	require.NoError(t, err)
	// Worker não iniciado: a fila enche e o excedente é descartado

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			sink.CaptureException(errors.New("x"), types.EventOptions{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("CaptureException blocked on a full queue")
	}
	assert.Len(t, sink.queue, 2)
}

func TestCaptureExceptionConcurrentDropsCounted(t *testing.T) {
	sink, err := NewHTTPCrashSink(types.CrashSinkConfig{
		URL:       "http://localhost:1",
		QueueSize: 1,
	}, testLogger())
	require.NoError(t, err)
	// Worker não iniciado: só a primeira captura cabe na fila, o resto é
	// descartado por goroutines concorrentes

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				sink.CaptureException(errors.New("x"), types.EventOptions{})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, sink.queue, 1)
	assert.Equal(t, int64(99), sink.Dropped())
}

func TestBreadcrumbRingBounded(t *testing.T) {
	sink, err := NewHTTPCrashSink(types.CrashSinkConfig{
		URL:              "http://localhost:1",
		BreadcrumbBuffer: 3,
	}, testLogger())
	require.NoError(t, err)

	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		sink.AddBreadcrumb(types.Breadcrumb{Message: msg})
	}

	crumbs := sink.drainBreadcrumbs()
	require.Len(t, crumbs, 3)
	assert.Equal(t, "c", crumbs[0].Message)
	assert.Equal(t, "e", crumbs[2].Message)

	// Drenagem limpa o buffer
	assert.Nil(t, sink.drainBreadcrumbs())
}

func TestStopDrainsQueue(t *testing.T) {
	received := make(chan struct{}, 10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink, err := NewHTTPCrashSink(types.CrashSinkConfig{URL: server.URL, QueueSize: 10}, testLogger())
	require.NoError(t, err)

	sink.Start()
	sink.CaptureException(errors.New("pending"), types.EventOptions{Level: "error"})
	sink.Stop()

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("queued capture was not flushed on Stop")
	}
}
