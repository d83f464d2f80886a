package observability

import (
	"os"
	"runtime"
	"sync/atomic"

	"github.com/shirou/gopsutil/process"
)

// RelayStats is a point-in-time view of the relay activity.
type RelayStats struct {
	OnlineUsers       int
	Accepted          uint64
	Rejected          uint64
	FramesIn          uint64
	FramesOut         uint64
	SendFailures      uint64
	Goroutines        int
	AllocMemMb        uint64
	ProcessRSSMb      uint64
	ProcessCPUPercent float64
}

// MonitoringManager aggregates relay counters. Every method is safe for concurrent use.
type MonitoringManager struct {
	accepted     atomic.Uint64
	rejected     atomic.Uint64
	framesIn     atomic.Uint64
	framesOut    atomic.Uint64
	sendFailures atomic.Uint64
}

func NewMonitoringManager() *MonitoringManager {
	return &MonitoringManager{}
}

func (mm *MonitoringManager) IncrAccepted()     { mm.accepted.Add(1) }
func (mm *MonitoringManager) IncrRejected()     { mm.rejected.Add(1) }
func (mm *MonitoringManager) IncrFramesIn()     { mm.framesIn.Add(1) }
func (mm *MonitoringManager) IncrFramesOut()    { mm.framesOut.Add(1) }
func (mm *MonitoringManager) IncrSendFailures() { mm.sendFailures.Add(1) }

// Snapshot reads the counters and the Go runtime memory stats.
func (mm *MonitoringManager) Snapshot(onlineUsers int) RelayStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RelayStats{
		OnlineUsers:  onlineUsers,
		Accepted:     mm.accepted.Load(),
		Rejected:     mm.rejected.Load(),
		FramesIn:     mm.framesIn.Load(),
		FramesOut:    mm.framesOut.Load(),
		SendFailures: mm.sendFailures.Load(),
		Goroutines:   runtime.NumGoroutine(),
		AllocMemMb:   mem.Alloc / 1024 / 1024,
	}
}

// ProcessStats adds the OS view of the relay process (RSS and CPU) to stats.
func ProcessStats(stats RelayStats) (RelayStats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return stats, err
	}
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return stats, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return stats, err
	}
	stats.ProcessRSSMb = memInfo.RSS / 1024 / 1024
	stats.ProcessCPUPercent = cpuPercent
	return stats, nil
}
