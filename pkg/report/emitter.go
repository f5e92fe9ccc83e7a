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

package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/NVIDIA/sandboxd/pkg/defaults"
	"github.com/NVIDIA/sandboxd/pkg/trace"
)

// SnapshotFunc returns an internally-consistent copy of a SampleTrace; the
// caller (the session's benchmarker) is the single writer and owns the
// locking discipline (spec §5).
type SnapshotFunc func() trace.SampleTrace

// Emitter streams in-flight progress and publishes terminal bundles over a
// durable Queue (spec §4.6).
type Emitter struct {
	Queue *Queue
}

// NewEmitter returns an Emitter publishing through q.
func NewEmitter(q *Queue) *Emitter {
	return &Emitter{Queue: q}
}

// StartPeriodic schedules a recurring snapshot-and-publish every interval
// (default 500ms per spec §4.6) until ctx is cancelled or stop is closed.
// Cancellation is cooperative: the loop only checks at tick boundaries.
func (e *Emitter) StartPeriodic(ctx context.Context, sessionID string, snapshot SnapshotFunc, stop <-chan struct{}, interval time.Duration) {
	if interval <= 0 {
		interval = defaults.PublishInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			snap := snapshot()
			if !snap.Valid() {
				// A torn snapshot would violate spec §4.6's "snapshots
				// must not observe diverging series lengths"; skip this
				// tick rather than publish inconsistent data.
				slog.Warn("skipping in-flight publish: inconsistent snapshot", "session_id", sessionID)
				continue
			}
			env := Envelope{
				SessionID:  sessionID,
				ReportType: TypeBenchmarker,
				Metadata: map[string]any{
					"in_flight":          true,
					"execution_start_ms": snap.ExecutionStartMS,
				},
				Result: snap,
			}
			body, err := env.Marshal()
			if err != nil {
				slog.Warn("failed to marshal in-flight snapshot", "session_id", sessionID, "error", err)
				continue
			}
			if err := e.Queue.Publish(ctx, body); err != nil {
				slog.Warn("failed to publish in-flight snapshot", "session_id", sessionID, "error", err)
			}
		}
	}
}

// PublishFinal publishes the one-shot terminal bundle for a session (spec
// §4.6: `{ session_id, report_type, metadata, result, statistics }`).
func (e *Emitter) PublishFinal(ctx context.Context, env Envelope) error {
	body, err := env.Marshal()
	if err != nil {
		return err
	}
	return e.Queue.Publish(ctx, body)
}
