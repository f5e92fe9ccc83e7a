// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package clock provides the millisecond timestamp and moving-average
// utilities shared by the process benchmarker and container sampler, plus
// a generic helper for taking internally-consistent snapshots of a
// single-writer, multi-reader trace.
package clock

import (
	"math"
	"sync"
	"time"
)

// NowMS returns the current wall-clock time in milliseconds since the Unix
// epoch. It is the single timestamp source for both samplers and reads the
// real wall clock; there is no hook for substituting a fake clock.
func NowMS() int64 {
	return time.Now().UnixMilli()
}

// MovingAverage returns a slice the same length as xs, each point the
// average of a centered window of width w (clamped to [1, len(xs)]).
// Points near either edge use a narrower, in-bounds window rather than
// wrapping or padding with zeros, so constant input of any length returns
// itself unchanged for any window width.
func MovingAverage(xs []float64, w int) []float64 {
	n := len(xs)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if w < 1 {
		w = 1
	}
	if w > n {
		w = n
	}
	half := w / 2
	for i := range xs {
		lo := i - half
		hi := i + half
		if w%2 == 0 {
			hi--
		}
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += xs[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}

// WindowWidth returns ceil(n/20), the default moving-average window width
// used for trace statistics (spec §4.2), clamped to at least 1.
func WindowWidth(n int) int {
	if n <= 0 {
		return 1
	}
	w := int(math.Ceil(float64(n) / 20.0))
	if w < 1 {
		return 1
	}
	return w
}

// Guard is a single mutex covering appends to a trace's parallel series,
// satisfying the single-writer/coherent-snapshot discipline required by
// spec §5 for both SampleTrace and ContainerTrace.
type Guard struct {
	mu sync.Mutex
}

// Append runs fn while holding the write lock. Use for every point append
// to a guarded trace.
func (g *Guard) Append(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn()
}

// Snapshot runs fn while holding the same lock appends use, so a reader
// never observes a trace mid-append (some series updated, others not).
func (g *Guard) Snapshot(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn()
}
