package observability

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMonitoringManager_Snapshot(t *testing.T) {
	req := require.New(t)
	mm := NewMonitoringManager()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mm.IncrAccepted()
			mm.IncrFramesIn()
			mm.IncrFramesOut()
			mm.IncrFramesOut()
		}()
	}
	wg.Wait()
	mm.IncrRejected()
	mm.IncrSendFailures()

	stats := mm.Snapshot(9)
	req.Equal(9, stats.OnlineUsers)
	req.Equal(uint64(10), stats.Accepted)
	req.Equal(uint64(1), stats.Rejected)
	req.Equal(uint64(10), stats.FramesIn)
	req.Equal(uint64(20), stats.FramesOut)
	req.Equal(uint64(1), stats.SendFailures)
	req.Positive(stats.Goroutines)
}

func TestProcessStats(t *testing.T) {
	req := require.New(t)
	stats, err := ProcessStats(NewMonitoringManager().Snapshot(0))
	req.NoError(err)
	req.GreaterOrEqual(stats.ProcessRSSMb, uint64(1))
	req.GreaterOrEqual(stats.ProcessCPUPercent, 0.0)
}
