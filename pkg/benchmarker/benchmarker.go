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

// Package benchmarker implements the in-sandbox Process Benchmarker (spec
// §4.2): it spawns a target binary, walks its descendant process tree at a
// fixed sampling interval, and aggregates CPU/memory/I/O into a SampleTrace.
package benchmarker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/NVIDIA/sandboxd/pkg/clock"
	"github.com/NVIDIA/sandboxd/pkg/defaults"
	"github.com/NVIDIA/sandboxd/pkg/trace"
)

const stdioTailLimit = 64 * 1024

// ringTail keeps only the last stdioTailLimit bytes written to it, mirroring
// the std_out/std_err tail capture of the original process monitor.
type ringTail struct {
	buf bytes.Buffer
}

func (r *ringTail) Write(p []byte) (int, error) {
	r.buf.Write(p)
	if r.buf.Len() > stdioTailLimit {
		trimmed := r.buf.Bytes()[r.buf.Len()-stdioTailLimit:]
		r.buf.Reset()
		r.buf.Write(trimmed)
	}
	return len(p), nil
}

func (r *ringTail) String() string { return r.buf.String() }

// knownChild caches a descendant's gopsutil handle so I/O counter
// continuity is preserved across ticks (spec §4.2: re-resolving a child by
// pid resets some counters on some platforms).
type knownChild struct {
	proc *process.Process
}

// Benchmarker runs a single target command and owns the single-writer
// discipline over its SampleTrace (spec §5): only the sampling loop
// appends; Snapshot hands back an internally-consistent copy.
type Benchmarker struct {
	interval time.Duration

	mu        sync.Mutex
	trace     trace.SampleTrace
	targetPID int32

	children map[int32]*knownChild
	warnedPermission map[int32]bool
}

// New returns a Benchmarker sampling at the given interval (default 100ms
// when interval <= 0).
func New(interval time.Duration) *Benchmarker {
	if interval <= 0 {
		interval = defaults.SampleInterval
	}
	return &Benchmarker{
		interval:         interval,
		children:         make(map[int32]*knownChild),
		warnedPermission: make(map[int32]bool),
	}
}

// Snapshot returns an internally-consistent copy of the trace so far.
func (b *Benchmarker) Snapshot() trace.SampleTrace {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trace.Clone()
}

// ObserveTarget records pid as the benchmark target and starts the
// execution clock, used when the target is spawned by the container daemon
// rather than by this process (spec §4.2's "in-sandbox benchmarker
// entry-point": the daemon's exec reports a host-visible pid via
// ContainerExecInspect, which gopsutil can sample from the host).
func (b *Benchmarker) ObserveTarget(pid int32) {
	b.mu.Lock()
	p := pid
	b.trace.TargetPID = &p
	b.trace.ExecutionStartMS = clock.NowMS()
	b.targetPID = pid
	b.mu.Unlock()
}

// RunSampling ticks sampleTick on the interval against whatever pid
// ObserveTarget last recorded, until done fires (the exec completed), stop
// requests early shutdown, or ctx is cancelled. Safe to call before
// ObserveTarget: ticks are no-ops until a target pid is known.
func (b *Benchmarker) RunSampling(ctx context.Context, stop <-chan struct{}, done <-chan struct{}) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.mu.Lock()
			pid := b.targetPID
			b.mu.Unlock()
			if pid == 0 {
				continue
			}
			b.sampleTick(pid)
		}
	}
}

// Complete finalizes the trace once the externally-observed target has
// exited or been stopped, the ObserveTarget/RunSampling counterpart to
// BenchmarkCommand's own bookkeeping.
func (b *Benchmarker) Complete(exitStatus int, terminated bool, stdout, stderr string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trace.ExecutionEndMS = clock.NowMS()
	b.trace.Terminated = terminated
	if !terminated {
		status := exitStatus
		b.trace.ExitStatus = &status
	}
	b.trace.StdOut = stdout
	b.trace.StdErr = stderr
}

// BenchmarkCommand spawns argv in cwd and blocks until the target exits, a
// stop signal is received, or ctx is cancelled. skipBenchmarking is a
// pre-spawn abort (spec §4.2): returns immediately with empty series and
// exit_status=-1.
func (b *Benchmarker) BenchmarkCommand(ctx context.Context, argv []string, cwd string, skipBenchmarking bool, stop <-chan struct{}) (trace.SampleTrace, error) {
	if skipBenchmarking {
		b.mu.Lock()
		b.trace.SkipBenchmarking = true
		status := -1
		b.trace.ExitStatus = &status
		snap := b.trace.Clone()
		b.mu.Unlock()
		return snap, nil
	}

	if len(argv) == 0 {
		return trace.SampleTrace{}, errors.New("benchmarker: empty argv")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = cwd
	var stdout, stderr ringTail
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return trace.SampleTrace{}, err
	}

	pid := int32(cmd.Process.Pid)
	b.mu.Lock()
	b.trace.TargetPID = &pid
	b.trace.ExecutionStartMS = clock.NowMS()
	b.mu.Unlock()

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	var terminated bool
	var exitStatus int

loop:
	for {
		select {
		case <-stop:
			_ = cmd.Process.Kill()
			<-waitErr
			terminated = true
			break loop
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			<-waitErr
			terminated = true
			break loop
		case err := <-waitErr:
			if err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					exitStatus = exitErr.ExitCode()
				} else {
					exitStatus = -1
				}
			}
			break loop
		case <-ticker.C:
			b.sampleTick(pid)
		}
	}

	b.mu.Lock()
	b.trace.ExecutionEndMS = clock.NowMS()
	b.trace.Terminated = terminated
	if !terminated {
		b.trace.ExitStatus = &exitStatus
	}
	b.trace.StdOut = stdout.String()
	b.trace.StdErr = stderr.String()
	snap := b.trace.Clone()
	b.mu.Unlock()

	return snap, nil
}

// sampleTick resolves the current process tree and appends one point to
// each series (spec §4.2 algorithm).
func (b *Benchmarker) sampleTick(targetPID int32) {
	root, err := process.NewProcess(targetPID)
	if err != nil {
		return
	}

	b.refreshChildren(root)

	var cpuPercent float64
	var mem trace.Memory
	var io trace.IO

	procs := make([]*process.Process, 0, len(b.children)+1)
	procs = append(procs, root)
	for _, c := range b.children {
		procs = append(procs, c.proc)
	}

	for _, p := range procs {
		cp, rss, uss, rb, wb, rc, wc, ok := b.readProcessSample(p)
		if !ok {
			continue
		}
		cpuPercent += cp
		mem.RSS += rss
		mem.USS += uss
		io.ReadBytes += rb
		io.WriteBytes += wb
		io.ReadChars += rc
		io.WriteChars += wc
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	now := clock.NowMS()
	b.trace.SampleMS = append(b.trace.SampleMS, now-b.trace.ExecutionStartMS)
	b.trace.CPUPercent = append(b.trace.CPUPercent, cpuPercent)
	b.trace.Memory = append(b.trace.Memory, mem)
	b.trace.IO = append(b.trace.IO, io)
}

// refreshChildren walks root's descendants and adds newly-seen ones to the
// known-children cache; previously-cached children are never removed, even
// if absent this tick (spec §4.2 tie-break).
func (b *Benchmarker) refreshChildren(root *process.Process) {
	pending := []*process.Process{root}
	for len(pending) > 0 {
		p := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		kids, err := p.Children()
		if err != nil {
			continue
		}
		for _, d := range kids {
			if _, ok := b.children[d.Pid]; !ok {
				b.children[d.Pid] = &knownChild{proc: d}
			}
			pending = append(pending, d)
		}
	}
}

// readProcessSample reads one process's CPU/memory/IO counters for this
// tick. A no-such-process or permission-denied error is swallowed silently
// (permission-denied is logged once) per spec §4.2 tie-breaks.
func (b *Benchmarker) readProcessSample(p *process.Process) (cpuPercent float64, rss, uss, readBytes, writeBytes, readChars, writeChars uint64, ok bool) {
	running, err := p.IsRunning()
	if err != nil || !running {
		return 0, 0, 0, 0, 0, 0, 0, false
	}

	cpuPercent, err = p.CPUPercent()
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			b.warnOncePermission(p.Pid, err)
		}
		return 0, 0, 0, 0, 0, 0, 0, false
	}

	memInfo, err := p.MemoryInfo()
	if err != nil || memInfo == nil {
		return 0, 0, 0, 0, 0, 0, 0, false
	}
	rss = memInfo.RSS

	if u, err := procUSS(p.Pid); err == nil {
		uss = u
	} else {
		uss = rss
	}

	ioCounters, err := p.IOCounters()
	if err == nil && ioCounters != nil {
		readBytes = ioCounters.ReadBytes
		writeBytes = ioCounters.WriteBytes
	}
	if rc, wc, err := procIOChars(p.Pid); err == nil {
		readChars, writeChars = rc, wc
	} else {
		readChars, writeChars = readBytes, writeBytes
	}

	return cpuPercent, rss, uss, readBytes, writeBytes, readChars, writeChars, true
}

func (b *Benchmarker) warnOncePermission(pid int32, err error) {
	if b.warnedPermission[pid] {
		return
	}
	b.warnedPermission[pid] = true
	slog.Warn("permission denied reading process sample, skipping it while denied (logged once per pid)", "pid", pid, "error", err)
}
