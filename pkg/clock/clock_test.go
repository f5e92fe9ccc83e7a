package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovingAverageConstantInput(t *testing.T) {
	for _, n := range []int{1, 2, 5, 20, 37} {
		xs := make([]float64, n)
		for i := range xs {
			xs[i] = 3.5
		}
		for w := 1; w <= n; w++ {
			out := MovingAverage(xs, w)
			require.Len(t, out, n)
			for _, v := range out {
				assert.InDelta(t, 3.5, v, 1e-9)
			}
		}
	}
}

func TestMovingAverageLengthPreserved(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	out := MovingAverage(xs, WindowWidth(len(xs)))
	assert.Len(t, out, len(xs))
}

func TestMovingAverageEmpty(t *testing.T) {
	assert.Empty(t, MovingAverage(nil, 5))
}

func TestWindowWidth(t *testing.T) {
	assert.Equal(t, 1, WindowWidth(0))
	assert.Equal(t, 1, WindowWidth(20))
	assert.Equal(t, 2, WindowWidth(21))
	assert.Equal(t, 5, WindowWidth(100))
}

func TestGuardSerializesAppendAndSnapshot(t *testing.T) {
	var g Guard
	xs := []int{}
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			g.Append(func() { xs = append(xs, i) })
		}
		close(done)
	}()
	<-done
	var length int
	g.Snapshot(func() { length = len(xs) })
	assert.Equal(t, 100, length)
}
