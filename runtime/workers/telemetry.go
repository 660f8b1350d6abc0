package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// TelemetryWorker periodically samples the server process (CPU, RAM,
// goroutines, live connections) and logs the readings. Observability only,
// it has no effect on delivery or storage.
type TelemetryWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	connections    func() int
}

func NewTelemetryWorker(log *slog.Logger, metricInterval time.Duration, connections func() int) *TelemetryWorker {
	return &TelemetryWorker{log: log, metricInterval: metricInterval, connections: connections}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			cpu, err := proc.CPUPercent()
			if err != nil {
				w.log.Error("Error while finding process cpu usage", "err", err)
				continue
			}
			ram, err := proc.MemoryPercent()
			if err != nil {
				w.log.Error("Error while finding process ram usage", "err", err)
				continue
			}
			w.log.Info("telemetry",
				"cpu_percent", cpu,
				"ram_percent", ram,
				"goroutines", runtime.NumGoroutine(),
				"connections", w.connections())
		}
	}
}
