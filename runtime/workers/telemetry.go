package workers

import (
	"chat-rooms/contract"
	"chat-rooms/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*TelemetryWorker)(nil)

// TelemetryWorker periodically logs process usage and the runtime
// counters. Observability only; it touches no room state.
type TelemetryWorker struct {
	log      *slog.Logger
	stats    *observability.Stats
	interval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, stats *observability.Stats, interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, stats: stats, interval: interval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case <-ticker.C:
			w.report(proc)
		}
	}
}

func (w *TelemetryWorker) report(proc *process.Process) {
	attrs := []any{}
	if cpu, err := proc.CPUPercent(); err == nil {
		attrs = append(attrs, "cpu_percent", cpu)
	}
	if ram, err := proc.MemoryPercent(); err == nil {
		attrs = append(attrs, "ram_percent", ram)
	}
	for key, value := range w.stats.Snapshot() {
		attrs = append(attrs, key, value)
	}
	w.log.Info("Telemetry", attrs...)
}
