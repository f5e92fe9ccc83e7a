package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSample(n int) *SampleTrace {
	st := &SampleTrace{ExecutionStartMS: 1000}
	for i := 0; i < n; i++ {
		st.SampleMS = append(st.SampleMS, int64(i*100))
		st.CPUPercent = append(st.CPUPercent, float64(i))
		st.Memory = append(st.Memory, Memory{RSS: uint64(i * 1024), USS: uint64(i * 512)})
		st.IO = append(st.IO, IO{ReadBytes: uint64(i * 10), WriteBytes: uint64(i * 5)})
	}
	return st
}

func TestSampleTraceValid(t *testing.T) {
	st := buildSample(5)
	assert.True(t, st.Valid())

	st.CPUPercent = st.CPUPercent[:4]
	assert.False(t, st.Valid())
}

func TestSampleTraceCloneIndependence(t *testing.T) {
	st := buildSample(3)
	clone := st.Clone()
	st.SampleMS = append(st.SampleMS, 999)
	assert.Len(t, clone.SampleMS, 3)
	assert.Len(t, st.SampleMS, 4)
}

func TestGetStatisticsBasic(t *testing.T) {
	st := buildSample(10)
	st.ExecutionEndMS = st.ExecutionStartMS + 900
	stats := GetStatisticsBasic(*st, 2)
	require.InDelta(t, 0.9, stats.ExecutionTimeS, 1e-9)
	assert.InDelta(t, float64(9*10)/mib, stats.ReadBytesMiB, 1e-12)
	assert.Greater(t, stats.MaxRSSMiB, 0.0)
}

func TestGetStatisticsFullLengthInvariant(t *testing.T) {
	st := buildSample(37)
	full := GetStatisticsFull(*st, 1)
	n := len(st.SampleMS)
	assert.Len(t, full.TimestampsS, n)
	assert.Len(t, full.CPUPercentNorm, n)
	assert.Len(t, full.CPUPercentMA, n)
	assert.Len(t, full.RSSMiB, n)
}

func TestGetStatisticsEmptyTrace(t *testing.T) {
	st := &SampleTrace{}
	assert.Equal(t, BasicStatistics{}, GetStatisticsBasic(*st, 1))
	full := GetStatisticsFull(*st, 1)
	assert.Empty(t, full.TimestampsS)
}

func TestContainerTraceValidAfterPadding(t *testing.T) {
	ct := &ContainerTrace{
		TimestampsS: []float64{0, 1, 2},
		CPU:         []ContainerCPU{{}, {}, {}},
		Memory:      []ContainerMemory{{}, {}, {}},
		Blkio: []BlkioPoint{
			{ReadBytes: map[string]uint64{"8:0": 100}},
			{},
			{ReadBytes: map[string]uint64{"8:0": 200}, WriteBytes: map[string]uint64{"8:0": 50}},
		},
		Network: []map[string]NetIfacePoint{{}, {}, {}},
	}
	PadBlkioKeys(ct.Blkio, map[string]struct{}{"8:0": {}})
	assert.True(t, ct.Valid())
	for _, p := range ct.Blkio {
		_, ok := p.ReadBytes["8:0"]
		assert.True(t, ok)
		_, ok = p.WriteBytes["8:0"]
		assert.True(t, ok)
	}
}

func TestContainerTraceClone(t *testing.T) {
	ct := &ContainerTrace{TimestampsS: []float64{1, 2}}
	clone := ct.Clone()
	ct.TimestampsS = append(ct.TimestampsS, 3)
	assert.Len(t, clone.TimestampsS, 2)
}
