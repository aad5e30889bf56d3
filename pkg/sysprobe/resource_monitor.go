// Package sysprobe samples host CPU and memory and feeds the measurements
// through the performance metric recorder, keeping server-side resource
// pressure visible in the same stream as page-level performance signals.
package sysprobe

import (
	"context"
	"sync"
	"time"

	"lusotown-monitoring/pkg/types"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// Recorder destino das amostras coletadas
type Recorder interface {
	Record(metric types.PerformanceMetric)
}

// Config configurações do watcher de recursos
type Config struct {
	Interval        time.Duration
	CPUThresholdPct float64
	MemThresholdPct float64
}

// ResourceMonitor amostra CPU e memória do host periodicamente
type ResourceMonitor struct {
	config   Config
	logger   *logrus.Logger
	recorder Recorder

	runMu     sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New cria um monitor de recursos do host
func New(config Config, logger *logrus.Logger, recorder Recorder) *ResourceMonitor {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.CPUThresholdPct <= 0 {
		config.CPUThresholdPct = 85
	}
	if config.MemThresholdPct <= 0 {
		config.MemThresholdPct = 90
	}
	return &ResourceMonitor{
		config:   config,
		logger:   logger,
		recorder: recorder,
	}
}

// Start inicia a coleta periódica. Chamadas repetidas são no-op.
func (rm *ResourceMonitor) Start(ctx context.Context) {
	rm.runMu.Lock()
	defer rm.runMu.Unlock()
	if rm.isRunning {
		return
	}
	rm.isRunning = true

	runCtx, cancel := context.WithCancel(ctx)
	rm.cancel = cancel

	rm.wg.Add(1)
	go func() {
		defer rm.wg.Done()
		ticker := time.NewTicker(rm.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rm.sample(runCtx)
			case <-runCtx.Done():
				return
			}
		}
	}()

	rm.logger.WithField("interval", rm.config.Interval).Info("Host resource monitoring started")
}

// Stop encerra a coleta. Idempotente.
func (rm *ResourceMonitor) Stop() {
	rm.runMu.Lock()
	if !rm.isRunning {
		rm.runMu.Unlock()
		return
	}
	rm.isRunning = false
	cancel := rm.cancel
	rm.runMu.Unlock()

	cancel()
	rm.wg.Wait()
}

// sample coleta uma rodada de CPU e memória
func (rm *ResourceMonitor) sample(ctx context.Context) {
	now := time.Now()

	if percentages, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percentages) > 0 {
		rm.recorder.Record(types.PerformanceMetric{
			Name:      "host_cpu_percent",
			Value:     percentages[0],
			Threshold: rm.config.CPUThresholdPct,
			Status:    statusFor(percentages[0], rm.config.CPUThresholdPct),
			Timestamp: now,
		})
	} else if err != nil {
		rm.logger.WithError(err).Debug("Failed to sample CPU usage")
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		rm.recorder.Record(types.PerformanceMetric{
			Name:      "host_memory_percent",
			Value:     vm.UsedPercent,
			Threshold: rm.config.MemThresholdPct,
			Status:    statusFor(vm.UsedPercent, rm.config.MemThresholdPct),
			Timestamp: now,
		})
	} else {
		rm.logger.WithError(err).Debug("Failed to sample memory usage")
	}
}

func statusFor(value, threshold float64) types.MetricStatus {
	switch {
	case value <= threshold:
		return types.MetricStatusGood
	case value <= threshold*1.1:
		return types.MetricStatusWarning
	default:
		return types.MetricStatusCritical
	}
}
