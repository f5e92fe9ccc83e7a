package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundedEndTruncatesTo30Seconds(t *testing.T) {
	end := time.Date(2026, 7, 30, 10, 0, 47, 0, time.UTC)
	w := QueryWindow{End: end}
	got := w.RoundedEnd()
	assert.Equal(t, time.Date(2026, 7, 30, 10, 0, 30, 0, time.UTC), got)
}

func TestDefaultWindowDefaults(t *testing.T) {
	now := time.Now()
	w := DefaultWindow("sess-1", now)
	assert.Equal(t, "sess-1", w.SessionID)
	assert.Equal(t, 2*time.Second, w.Step)
	assert.Equal(t, time.Hour, w.LookBack)
}

func TestDefaultMetricsCoversFiveFamilies(t *testing.T) {
	assert.Len(t, DefaultMetrics, 5)
	ids := map[string]bool{}
	for _, m := range DefaultMetrics {
		ids[m.ID] = true
	}
	for _, want := range []string{"cpu_percent", "working_set_memory", "filesystem_usage", "filesystem_throughput", "network_throughput"} {
		assert.True(t, ids[want], want)
	}
}
