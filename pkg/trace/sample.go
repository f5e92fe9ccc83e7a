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

// Package trace defines the time-indexed records produced by the
// in-sandbox process benchmarker and the host-side container sampler
// (spec §3), plus the pure statistical derivations over them (spec §4.2).
//
// Types in this package hold no lock of their own: the single-writer
// discipline required by spec §5 is the owning sampler's responsibility
// (see pkg/benchmarker and pkg/containerstats), so SampleTrace/ContainerTrace
// values can be copied freely once captured by a snapshot.
package trace

import (
	"github.com/NVIDIA/sandboxd/pkg/clock"
)

// Memory is a process-tree (or container) memory reading in bytes.
type Memory struct {
	RSS uint64 `json:"rss"`
	USS uint64 `json:"uss"`
}

// IO is a cumulative process-tree I/O counter reading in bytes/chars.
type IO struct {
	ReadBytes  uint64 `json:"read_bytes"`
	WriteBytes uint64 `json:"write_bytes"`
	ReadChars  uint64 `json:"read_chars"`
	WriteChars uint64 `json:"write_chars"`
}

// SampleTrace is a single in-sandbox benchmarker run (spec §3, SampleTrace).
type SampleTrace struct {
	TargetPID        *int32 `json:"target_pid,omitempty"`
	ExecutionStartMS int64  `json:"execution_start_ms"`
	ExecutionEndMS   int64  `json:"execution_end_ms"`

	SampleMS   []int64   `json:"sample_ms"`
	CPUPercent []float64 `json:"cpu_percent"`
	Memory     []Memory  `json:"memory"`
	IO         []IO      `json:"io"`

	ExitStatus       *int   `json:"exit_status,omitempty"`
	Terminated       bool   `json:"terminated"`
	StdOut           string `json:"std_out"`
	StdErr           string `json:"std_err"`
	SkipBenchmarking bool   `json:"skip_benchmarking"`
}

// Clone returns a deep copy of the series so a snapshot taken now is
// unaffected by subsequent appends to the original.
func (s *SampleTrace) Clone() SampleTrace {
	return SampleTrace{
		TargetPID:        s.TargetPID,
		ExecutionStartMS: s.ExecutionStartMS,
		ExecutionEndMS:   s.ExecutionEndMS,
		SampleMS:         append([]int64(nil), s.SampleMS...),
		CPUPercent:       append([]float64(nil), s.CPUPercent...),
		Memory:           append([]Memory(nil), s.Memory...),
		IO:               append([]IO(nil), s.IO...),
		ExitStatus:       s.ExitStatus,
		Terminated:       s.Terminated,
		StdOut:           s.StdOut,
		StdErr:           s.StdErr,
		SkipBenchmarking: s.SkipBenchmarking,
	}
}

// Valid reports whether all four parallel series share one length, the
// core invariant from spec §3 and §8.
func (s *SampleTrace) Valid() bool {
	n := len(s.SampleMS)
	return len(s.CPUPercent) == n && len(s.Memory) == n && len(s.IO) == n
}

// BasicStatistics is the pure numerical summary derived from a SampleTrace
// (spec §4.2: execution time, mean normalized CPU%, max RSS/USS, last
// cumulative I/O values).
type BasicStatistics struct {
	ExecutionTimeS float64 `json:"execution_time_s"`
	MeanCPUPercent float64 `json:"mean_cpu_percent"`
	MaxRSSMiB      float64 `json:"max_rss_mib"`
	MaxUSSMiB      float64 `json:"max_uss_mib"`
	ReadBytesMiB   float64 `json:"read_bytes_mib"`
	WriteBytesMiB  float64 `json:"write_bytes_mib"`
	ReadCharsMiB   float64 `json:"read_chars_mib"`
	WriteCharsMiB  float64 `json:"write_chars_mib"`
}

// FullStatistics additionally carries the full derived time series used for
// charting: second-denominated timestamps, CPU normalized by online CPU
// count, memory/IO in MiB, and moving-average smoothed CPU.
type FullStatistics struct {
	BasicStatistics

	TimestampsS         []float64 `json:"timestamps_s"`
	CPUPercentNorm      []float64 `json:"cpu_percent_norm"`
	CPUPercentMA        []float64 `json:"cpu_percent_moving_avg"`
	RSSMiB              []float64 `json:"rss_mib"`
	USSMiB              []float64 `json:"uss_mib"`
	ReadBytesMiBSeries  []float64 `json:"read_bytes_mib_series"`
	WriteBytesMiBSeries []float64 `json:"write_bytes_mib_series"`
}

const mib = 1024 * 1024

// GetStatisticsBasic derives the numerical summary over a snapshot (spec
// §4.2). onlineCPUCount must be >= 1.
func GetStatisticsBasic(snap SampleTrace, onlineCPUCount int) BasicStatistics {
	n := len(snap.SampleMS)
	if n == 0 {
		return BasicStatistics{}
	}
	if onlineCPUCount < 1 {
		onlineCPUCount = 1
	}

	var sumCPU float64
	var maxRSS, maxUSS uint64
	for i := 0; i < n; i++ {
		sumCPU += snap.CPUPercent[i] / float64(onlineCPUCount)
		if snap.Memory[i].RSS > maxRSS {
			maxRSS = snap.Memory[i].RSS
		}
		if snap.Memory[i].USS > maxUSS {
			maxUSS = snap.Memory[i].USS
		}
	}
	last := snap.IO[n-1]

	execMS := snap.ExecutionEndMS - snap.ExecutionStartMS
	if snap.ExecutionEndMS == 0 {
		execMS = snap.SampleMS[n-1]
	}

	return BasicStatistics{
		ExecutionTimeS: float64(execMS) / 1000.0,
		MeanCPUPercent: sumCPU / float64(n),
		MaxRSSMiB:      float64(maxRSS) / mib,
		MaxUSSMiB:      float64(maxUSS) / mib,
		ReadBytesMiB:   float64(last.ReadBytes) / mib,
		WriteBytesMiB:  float64(last.WriteBytes) / mib,
		ReadCharsMiB:   float64(last.ReadChars) / mib,
		WriteCharsMiB:  float64(last.WriteChars) / mib,
	}
}

// GetStatisticsFull derives the full chartable series plus the basic
// summary (spec §4.2).
func GetStatisticsFull(snap SampleTrace, onlineCPUCount int) FullStatistics {
	n := len(snap.SampleMS)
	basic := GetStatisticsBasic(snap, onlineCPUCount)
	if n == 0 {
		return FullStatistics{BasicStatistics: basic}
	}
	if onlineCPUCount < 1 {
		onlineCPUCount = 1
	}

	timestamps := make([]float64, n)
	cpuNorm := make([]float64, n)
	rss := make([]float64, n)
	uss := make([]float64, n)
	readBytes := make([]float64, n)
	writeBytes := make([]float64, n)

	for i := 0; i < n; i++ {
		timestamps[i] = float64(snap.SampleMS[i]) / 1000.0
		cpuNorm[i] = snap.CPUPercent[i] / float64(onlineCPUCount)
		rss[i] = float64(snap.Memory[i].RSS) / mib
		uss[i] = float64(snap.Memory[i].USS) / mib
		readBytes[i] = float64(snap.IO[i].ReadBytes) / mib
		writeBytes[i] = float64(snap.IO[i].WriteBytes) / mib
	}

	return FullStatistics{
		BasicStatistics:     basic,
		TimestampsS:         timestamps,
		CPUPercentNorm:      cpuNorm,
		CPUPercentMA:        clock.MovingAverage(cpuNorm, clock.WindowWidth(n)),
		RSSMiB:              rss,
		USSMiB:              uss,
		ReadBytesMiBSeries:  readBytes,
		WriteBytesMiBSeries: writeBytes,
	}
}
