package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

// OnlineCounter tells how many users are registered.
type OnlineCounter interface {
	Len() int
}

// ReporterWorker logs the relay activity at a fixed interval.
type ReporterWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	online     OnlineCounter
	interval   time.Duration
}

func NewReporterWorker(log *slog.Logger, monitoring *observability.MonitoringManager,
	online OnlineCounter, interval time.Duration) *ReporterWorker {
	return &ReporterWorker{log: log, monitoring: monitoring, online: online, interval: interval}
}

// Run starts the reporting loop until context cancellation
func (w *ReporterWorker) Run(ctx context.Context) error {
	startTime := time.Now()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report(startTime)
			return nil
		case <-ticker.C:
			w.report(startTime)
		}
	}
}

func (w *ReporterWorker) report(startTime time.Time) {
	stats, err := observability.ProcessStats(w.monitoring.Snapshot(w.online.Len()))
	if err != nil {
		w.log.Debug("Failed to collect process stats", "error", err)
	}
	w.log.Info("Relay stats",
		"uptime", time.Since(startTime).Round(time.Second).String(),
		"online", stats.OnlineUsers,
		"accepted", stats.Accepted,
		"rejected", stats.Rejected,
		"frames_in", stats.FramesIn,
		"frames_out", stats.FramesOut,
		"send_failures", stats.SendFailures,
		"goroutines", stats.Goroutines,
		"alloc_mb", stats.AllocMemMb,
		"rss_mb", stats.ProcessRSSMb,
		"cpu_percent", stats.ProcessCPUPercent,
	)
}
