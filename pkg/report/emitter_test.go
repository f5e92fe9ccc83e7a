package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/NVIDIA/sandboxd/pkg/trace"
)

// TestStartPeriodicStopsOnSignal verifies the periodic publisher's
// cooperative-cancellation contract (spec §4.6): closing stop halts the
// loop at the next boundary without panicking even though the broker is
// unreachable (Queue.Publish will fail and be swallowed with a log).
func TestStartPeriodicStopsOnSignal(t *testing.T) {
	e := NewEmitter(NewQueue("amqp://127.0.0.1:1/nonexistent", "q"))
	st := &trace.SampleTrace{ExecutionStartMS: 0}
	st.SampleMS = append(st.SampleMS, 0)
	st.CPUPercent = append(st.CPUPercent, 1)
	st.Memory = append(st.Memory, trace.Memory{})
	st.IO = append(st.IO, trace.IO{})

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		e.StartPeriodic(context.Background(), "sess-1", func() trace.SampleTrace { return st.Clone() }, stop, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StartPeriodic did not stop after stop signal")
	}
}

func TestStartPeriodicSkipsInconsistentSnapshot(t *testing.T) {
	e := NewEmitter(NewQueue("amqp://127.0.0.1:1/nonexistent", "q"))
	torn := trace.SampleTrace{
		SampleMS:   []int64{0, 1},
		CPUPercent: []float64{0},
	}
	assert.False(t, torn.Valid())

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		e.StartPeriodic(context.Background(), "sess-2", func() trace.SampleTrace { return torn }, stop, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(15 * time.Millisecond)
	close(stop)
	<-done
}
