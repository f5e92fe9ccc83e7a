package timeoutsup

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisorWarnsThenElapses(t *testing.T) {
	var warned, killed int32
	s := New(10*time.Millisecond, 30*time.Millisecond,
		func() { atomic.StoreInt32(&warned, 1) },
		func() { atomic.StoreInt32(&killed, 1) },
	)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor never elapsed")
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&warned))
	assert.Equal(t, int32(1), atomic.LoadInt32(&killed))
	assert.Equal(t, Elapsed, s.State())
}

func TestSupervisorCancelBeforeSoft(t *testing.T) {
	var warned, killed int32
	s := New(50*time.Millisecond, 100*time.Millisecond,
		func() { atomic.StoreInt32(&warned, 1) },
		func() { atomic.StoreInt32(&killed, 1) },
	)

	s.Cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("Cancel did not close Done")
	}

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&warned))
	assert.Equal(t, int32(0), atomic.LoadInt32(&killed))
	assert.Equal(t, Cancelled, s.State())
}

func TestSupervisorCancelAfterWarnSuppressesKill(t *testing.T) {
	var killed int32
	s := New(5*time.Millisecond, 20*time.Millisecond,
		func() {},
		func() { atomic.StoreInt32(&killed, 1) },
	)

	time.Sleep(10 * time.Millisecond)
	require.Equal(t, Warned, s.State())

	s.Cancel()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, int32(0), atomic.LoadInt32(&killed))
	assert.Equal(t, Cancelled, s.State())
}

func TestSupervisorCancelIsIdempotent(t *testing.T) {
	s := New(5*time.Millisecond, 10*time.Millisecond, func() {}, func() {})
	s.Cancel()
	s.Cancel()
	assert.Equal(t, Cancelled, s.State())
}

func TestSupervisorZeroHardNeverKills(t *testing.T) {
	var killed int32
	s := New(5*time.Millisecond, 0, func() {}, func() { atomic.StoreInt32(&killed, 1) })
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&killed))
	assert.Equal(t, Warned, s.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "armed", Armed.String())
	assert.Equal(t, "warned", Warned.String())
	assert.Equal(t, "elapsed", Elapsed.String())
	assert.Equal(t, "cancelled", Cancelled.String())
}
