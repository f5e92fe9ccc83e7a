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

package trace

import (
	"maps"
	"time"
)

// ContainerCPU is one tick's CPU reading, normalized per spec §4.3.
type ContainerCPU struct {
	PercentNorm float64 `json:"percent_norm"`
}

// ContainerMemory is one tick's memory counters, per spec §4.3.
type ContainerMemory struct {
	Usage        uint64  `json:"usage"`
	MaxUsage     uint64  `json:"max_usage"`
	Limit        uint64  `json:"limit"`
	Cache        uint64  `json:"cache"`
	RSS          uint64  `json:"rss"`
	Swap         uint64  `json:"swap"`
	ActiveAnon   uint64  `json:"active_anon"`
	InactiveAnon uint64  `json:"inactive_anon"`
	ActiveFile   uint64  `json:"active_file"`
	InactiveFile uint64  `json:"inactive_file"`
	PgFault      uint64  `json:"pgfault"`
	PgMajFault   uint64  `json:"pgmajfault"`
	Percent      float64 `json:"percent"`
}

// BlkioPoint is one tick's block I/O counters, keyed by "major:minor"
// device number (spec §4.3).
type BlkioPoint struct {
	ReadBytes  map[string]uint64 `json:"read_bytes"`
	WriteBytes map[string]uint64 `json:"write_bytes"`
}

// NetIfacePoint is one tick's per-interface network counters (spec §4.3).
type NetIfacePoint struct {
	RxBytes   uint64 `json:"rx_bytes"`
	TxBytes   uint64 `json:"tx_bytes"`
	RxPackets uint64 `json:"rx_packets"`
	TxPackets uint64 `json:"tx_packets"`
	RxDropped uint64 `json:"rx_dropped"`
	TxDropped uint64 `json:"tx_dropped"`
	RxErrors  uint64 `json:"rx_errors"`
	TxErrors  uint64 `json:"tx_errors"`
}

// ContainerMetadata identifies a ContainerTrace (spec §3).
type ContainerMetadata struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	SessionID string    `json:"session_id"`
}

// ContainerTrace mirrors SampleTrace but is sourced from the container
// daemon's cgroup-derived stats (spec §3, ContainerTrace).
type ContainerTrace struct {
	Metadata ContainerMetadata `json:"metadata"`

	TimestampsS []float64                `json:"timestamps_s"`
	CPU         []ContainerCPU           `json:"cpu"`
	Memory      []ContainerMemory        `json:"memory"`
	Blkio       []BlkioPoint             `json:"blkio"`
	Network     []map[string]NetIfacePoint `json:"network"`
}

// Clone returns a deep-enough copy for a coherent snapshot: the top-level
// slices and the per-tick blkio maps are copied, so later appends and
// PadBlkioKeys backfills on the original do not mutate what a reader
// already captured.
func (c *ContainerTrace) Clone() ContainerTrace {
	var blkio []BlkioPoint
	for _, p := range c.Blkio {
		blkio = append(blkio, BlkioPoint{ReadBytes: maps.Clone(p.ReadBytes), WriteBytes: maps.Clone(p.WriteBytes)})
	}
	return ContainerTrace{
		Metadata:    c.Metadata,
		TimestampsS: append([]float64(nil), c.TimestampsS...),
		CPU:         append([]ContainerCPU(nil), c.CPU...),
		Memory:      append([]ContainerMemory(nil), c.Memory...),
		Blkio:       blkio,
		Network:     append([]map[string]NetIfacePoint(nil), c.Network...),
	}
}

// Valid reports whether every per-tick series (CPU, memory, blkio, network)
// holds exactly len(TimestampsS) entries. It does not check that the blkio
// maps share one key set; PadBlkioKeys maintains that.
func (c *ContainerTrace) Valid() bool {
	n := len(c.TimestampsS)
	return len(c.CPU) == n && len(c.Memory) == n && len(c.Blkio) == n && len(c.Network) == n
}

// PadBlkioKeys backfills every key of allKeys in every tick of Blkio's two maps with 0
// so every keyed series in the trace remains exactly len(TimestampsS) long
// even though devices can appear mid-run (spec §4.3).
func PadBlkioKeys(points []BlkioPoint, allKeys map[string]struct{}) {
	for i := range points {
		if points[i].ReadBytes == nil {
			points[i].ReadBytes = map[string]uint64{}
		}
		if points[i].WriteBytes == nil {
			points[i].WriteBytes = map[string]uint64{}
		}
		for k := range allKeys {
			if _, ok := points[i].ReadBytes[k]; !ok {
				points[i].ReadBytes[k] = 0
			}
			if _, ok := points[i].WriteBytes[k]; !ok {
				points[i].WriteBytes[k] = 0
			}
		}
	}
}
