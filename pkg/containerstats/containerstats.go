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

// Package containerstats implements the host-side Container Sampler (spec
// §4.3): it polls the container daemon's stats endpoint and appends cgroup
// counters into a ContainerTrace.
package containerstats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"

	"github.com/NVIDIA/sandboxd/pkg/defaults"
	"github.com/NVIDIA/sandboxd/pkg/errs"
	"github.com/NVIDIA/sandboxd/pkg/trace"
)

// Sampler polls one container's stats at a fixed interval and owns the
// single-writer discipline over its ContainerTrace (spec §5).
type Sampler struct {
	cli         *client.Client
	containerID string
	interval    time.Duration

	mu       sync.Mutex
	data     trace.ContainerTrace
	blkioKeys map[string]struct{}
}

// New returns a Sampler for containerID, polling at interval (default
// 100ms).
func New(cli *client.Client, containerID, sessionID string, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = defaults.SampleInterval
	}
	return &Sampler{
		cli:         cli,
		containerID: containerID,
		interval:    interval,
		blkioKeys:   make(map[string]struct{}),
		data: trace.ContainerTrace{
			Metadata: trace.ContainerMetadata{
				StartTime: time.Now(),
				SessionID: sessionID,
			},
		},
	}
}

// Snapshot returns an internally-consistent copy of the trace so far.
func (s *Sampler) Snapshot() trace.ContainerTrace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// Run polls on an absolute-deadline schedule until the container stops,
// the daemon reports it gone, ctx is cancelled, or stop is closed. A
// container-not-found error ends the sampler normally; any other daemon
// error is surfaced (spec §4.3 failure policy).
func (s *Sampler) Run(ctx context.Context, stop <-chan struct{}) error {
	deadline := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}

		running, err := s.containerRunning(ctx)
		if err != nil {
			if client.IsErrNotFound(err) {
				slog.Info("container sampler stopping: container not found", "container_id", s.containerID)
				return nil
			}
			return errs.Wrap(errs.KindSamplerFailure, "containerstats.Run", "inspect container", err)
		}
		if !running {
			return nil
		}

		if err := s.tick(ctx); err != nil {
			if client.IsErrNotFound(err) {
				return nil
			}
			return errs.Wrap(errs.KindSamplerFailure, "containerstats.Run", "read container stats", err)
		}

		deadline = deadline.Add(s.interval)
		sleep := time.Until(deadline)
		if sleep < 0 {
			sleep = 0
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-stop:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (s *Sampler) containerRunning(ctx context.Context) (bool, error) {
	inspect, err := s.cli.ContainerInspect(ctx, s.containerID)
	if err != nil {
		return false, err
	}
	return inspect.State != nil && inspect.State.Running, nil
}

// tick reads one stats snapshot from the daemon and appends a point to
// every series (spec §4.3).
func (s *Sampler) tick(ctx context.Context) error {
	resp, err := s.cli.ContainerStatsOneShot(ctx, s.containerID)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var stats types.StatsJSON
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("decode container stats: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := time.Since(s.data.Metadata.StartTime).Seconds()
	s.data.TimestampsS = append(s.data.TimestampsS, elapsed)

	s.data.CPU = append(s.data.CPU, trace.ContainerCPU{PercentNorm: cpuPercent(stats)})
	s.data.Memory = append(s.data.Memory, memoryPoint(stats.MemoryStats))

	blkio := blkioPoint(stats.BlkioStats)
	for k := range blkio.ReadBytes {
		s.blkioKeys[k] = struct{}{}
	}
	for k := range blkio.WriteBytes {
		s.blkioKeys[k] = struct{}{}
	}
	s.data.Blkio = append(s.data.Blkio, blkio)
	trace.PadBlkioKeys(s.data.Blkio, s.blkioKeys)

	s.data.Network = append(s.data.Network, networkPoint(stats.Networks))

	return nil
}

// cpuPercent implements spec §4.3's exact formula:
// (Δcontainer / Δsystem) × total_system_cpus / online_cpus × 100, guarded
// so Δsystem <= 0 yields 0.
func cpuPercent(stats types.StatsJSON) float64 {
	deltaContainer := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	deltaSystem := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)
	if deltaSystem <= 0 {
		return 0
	}
	onlineCPUs := stats.CPUStats.OnlineCPUs
	if onlineCPUs == 0 {
		onlineCPUs = uint32(len(stats.CPUStats.CPUUsage.PercpuUsage))
	}
	if onlineCPUs == 0 {
		onlineCPUs = 1
	}
	totalCPUs := float64(len(stats.CPUStats.CPUUsage.PercpuUsage))
	if totalCPUs == 0 {
		totalCPUs = float64(onlineCPUs)
	}
	return (deltaContainer / deltaSystem) * totalCPUs / float64(onlineCPUs) * 100
}

func memoryPoint(m types.MemoryStats) trace.ContainerMemory {
	cm := trace.ContainerMemory{
		Usage:    m.Usage,
		MaxUsage: m.MaxUsage,
		Limit:    m.Limit,
	}
	if m.Stats != nil {
		cm.Cache = m.Stats["cache"]
		cm.RSS = m.Stats["rss"]
		cm.Swap = m.Stats["swap"]
		cm.ActiveAnon = m.Stats["active_anon"]
		cm.InactiveAnon = m.Stats["inactive_anon"]
		cm.ActiveFile = m.Stats["active_file"]
		cm.InactiveFile = m.Stats["inactive_file"]
		cm.PgFault = m.Stats["pgfault"]
		cm.PgMajFault = m.Stats["pgmajfault"]
	}
	if m.Limit > 0 {
		cm.Percent = float64(m.Usage) / float64(m.Limit) * 100
	}
	return cm
}

func blkioPoint(b types.BlkioStats) trace.BlkioPoint {
	point := trace.BlkioPoint{
		ReadBytes:  map[string]uint64{},
		WriteBytes: map[string]uint64{},
	}
	for _, entry := range b.IoServiceBytesRecursive {
		key := strconv.FormatUint(entry.Major, 10) + ":" + strconv.FormatUint(entry.Minor, 10)
		switch strings.ToLower(entry.Op) {
		case "read":
			point.ReadBytes[key] += entry.Value
		case "write":
			point.WriteBytes[key] += entry.Value
		}
	}
	return point
}

func networkPoint(networks map[string]types.NetworkStats) map[string]trace.NetIfacePoint {
	out := make(map[string]trace.NetIfacePoint, len(networks))
	for iface, n := range networks {
		out[iface] = trace.NetIfacePoint{
			RxBytes:   n.RxBytes,
			TxBytes:   n.TxBytes,
			RxPackets: n.RxPackets,
			TxPackets: n.TxPackets,
			RxDropped: n.RxDropped,
			TxDropped: n.TxDropped,
			RxErrors:  n.RxErrors,
			TxErrors:  n.TxErrors,
		}
	}
	return out
}
