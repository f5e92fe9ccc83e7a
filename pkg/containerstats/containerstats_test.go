package containerstats

import (
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"
)

func TestCPUPercentGuardsNonPositiveDeltaSystem(t *testing.T) {
	stats := types.StatsJSON{}
	stats.CPUStats.SystemUsage = 100
	stats.PreCPUStats.SystemUsage = 200 // delta negative
	assert.Equal(t, 0.0, cpuPercent(stats))
}

func TestCPUPercentComputesFormula(t *testing.T) {
	var stats types.StatsJSON
	stats.CPUStats.CPUUsage.TotalUsage = 300
	stats.PreCPUStats.CPUUsage.TotalUsage = 100
	stats.CPUStats.SystemUsage = 1100
	stats.PreCPUStats.SystemUsage = 1000
	stats.CPUStats.OnlineCPUs = 2
	stats.CPUStats.CPUUsage.PercpuUsage = []uint64{1, 2}

	got := cpuPercent(stats)
	want := (200.0 / 100.0) * 2.0 / 2.0 * 100.0
	assert.InDelta(t, want, got, 0.001)
}

func TestMemoryPointDerivesPercent(t *testing.T) {
	m := types.MemoryStats{Usage: 50, Limit: 100, Stats: map[string]uint64{"rss": 30, "cache": 10}}
	p := memoryPoint(m)
	assert.Equal(t, 50.0, p.Percent)
	assert.Equal(t, uint64(30), p.RSS)
	assert.Equal(t, uint64(10), p.Cache)
}

func TestBlkioPointPartitionsByDeviceAndOp(t *testing.T) {
	b := types.BlkioStats{
		IoServiceBytesRecursive: []types.BlkioStatEntry{
			{Major: 8, Minor: 0, Op: "Read", Value: 100},
			{Major: 8, Minor: 0, Op: "Write", Value: 50},
			{Major: 8, Minor: 1, Op: "Read", Value: 10},
		},
	}
	p := blkioPoint(b)
	assert.Equal(t, uint64(100), p.ReadBytes["8:0"])
	assert.Equal(t, uint64(50), p.WriteBytes["8:0"])
	assert.Equal(t, uint64(10), p.ReadBytes["8:1"])
}

func TestNetworkPointCopiesAllCounters(t *testing.T) {
	nets := map[string]types.NetworkStats{
		"eth0": {RxBytes: 1, TxBytes: 2, RxPackets: 3, TxPackets: 4, RxDropped: 5, TxDropped: 6, RxErrors: 7, TxErrors: 8},
	}
	p := networkPoint(nets)
	assert.Equal(t, uint64(1), p["eth0"].RxBytes)
	assert.Equal(t, uint64(8), p["eth0"].TxErrors)
}
