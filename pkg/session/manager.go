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

package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/NVIDIA/sandboxd/pkg/benchmarker"
	"github.com/NVIDIA/sandboxd/pkg/config"
	"github.com/NVIDIA/sandboxd/pkg/containerstats"
	"github.com/NVIDIA/sandboxd/pkg/errs"
	"github.com/NVIDIA/sandboxd/pkg/metrics"
	"github.com/NVIDIA/sandboxd/pkg/report"
	"github.com/NVIDIA/sandboxd/pkg/sandbox"
	"github.com/NVIDIA/sandboxd/pkg/scraper"
	"github.com/NVIDIA/sandboxd/pkg/store"
	"github.com/NVIDIA/sandboxd/pkg/trace"
)

// Manager ties together the sandbox runtime, the two samplers, the timeout
// supervisor, the report emitter, and the scraper adapter behind the
// session execution state machine (spec §4.5).
type Manager struct {
	store   *store.Store
	runtime *sandbox.Runtime
	emitter *report.Emitter
	scraper *scraper.Adapter
	cfg     *config.Config
}

// NewManager wires a Manager from its collaborators. scraper may be nil
// when no session is configured with provide_raw_series=true.
func NewManager(st *store.Store, rt *sandbox.Runtime, emitter *report.Emitter, sc *scraper.Adapter, cfg *config.Config) *Manager {
	return &Manager{store: st, runtime: rt, emitter: emitter, scraper: sc, cfg: cfg}
}

// CreateSession materializes a new session (Created) and immediately
// persists it (Persisted), per the data flow described in spec §2.
func (m *Manager) CreateSession(name, sha256 string, buildArgs map[string]string, processMonitorFlag bool, cfg Configuration) (*Session, error) {
	if buildArgs["binary_file"] == "" {
		return nil, errs.New(errs.KindUserInput, "session.CreateSession", "buildargs must contain binary_file")
	}

	s := &Session{
		ID:                 uuid.NewString(),
		Name:               name,
		SHA256:             sha256,
		BuildArgs:          buildArgs,
		ProcessMonitorFlag: processMonitorFlag,
		Configuration:      cfg,
		CreatedAt:          time.Now(),
		State:              Created,
	}

	if err := m.persist(s); err != nil {
		return nil, err
	}
	s.State = Persisted
	return s, nil
}

func (m *Manager) persist(s *Session) error {
	path := m.store.SessionPath(s.ID)
	if err := m.store.WriteJSON(path, s); err != nil {
		return errs.Wrap(errs.KindEnvironmentUnavailable, "session.persist", "write session document", err)
	}
	return nil
}

// LoadSession reads a session document by id, failing with a user-input
// error if absent (spec §4.5 step 1).
func (m *Manager) LoadSession(id string) (*Session, error) {
	var s Session
	path := m.store.SessionPath(id)
	if err := m.store.ReadJSON(path, &s); err != nil {
		return nil, errs.Wrap(errs.KindUserInput, "session.LoadSession", fmt.Sprintf("session %s not found", id), err)
	}
	s.State = Persisted
	if s.ExecutedAt != nil {
		s.State = Executed
	}
	return &s, nil
}

// ListSessions returns every persisted session id.
func (m *Manager) ListSessions() ([]string, error) {
	paths, err := m.store.List("session-*.json")
	if err != nil {
		return nil, errs.Wrap(errs.KindEnvironmentUnavailable, "session.ListSessions", "list session documents", err)
	}
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		base := filepath.Base(p)
		id := base[len("session-") : len(base)-len(".json")]
		ids = append(ids, id)
	}
	return ids, nil
}

// Execute runs the full orchestration of spec §4.5 steps 1-9 for session
// id. Any failure in steps 4-8 triggers deterministic teardown and the
// session transitions to Cancelled; step 9's store write is then skipped.
func (m *Manager) Execute(ctx context.Context, id string) error {
	s, err := m.LoadSession(id)
	if err != nil {
		return err
	}

	if s.Configuration.ProvideRawSeries && m.scraper == nil {
		return errs.New(errs.KindEnvironmentUnavailable, "session.Execute", "provide_raw_series requires the metrics stack to be configured").WithSession(id)
	}

	metrics.SessionsInFlight.Inc()
	defer metrics.SessionsInFlight.Dec()
	metrics.SessionsStarted.Inc()

	resultsDir := filepath.Join(m.cfg.ResultsDir, s.ID)
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return errs.Wrap(errs.KindEnvironmentUnavailable, "session.Execute", "create results directory", err).WithSession(id)
	}

	resolvedBaseImage, err := sandbox.ResolveBaseImage(ctx, s.Configuration.BaseImageTag)
	if err != nil {
		s.State = Cancelled
		metrics.SessionsCompleted.WithLabelValues("build_failed").Inc()
		return err
	}

	buildSpec := sandbox.BuildSpec{
		SessionID:     s.ID,
		BaseImageTag:  resolvedBaseImage,
		BuildArgs:     s.BuildArgs,
		DockerfileDir: resultsDir,
	}
	imageRef, err := m.runtime.BuildImage(ctx, buildSpec)
	if err != nil {
		s.State = Cancelled
		metrics.SessionsCompleted.WithLabelValues("build_failed").Inc()
		return err
	}

	runSpec := sandbox.RunSpec{
		SessionID:       s.ID,
		ImageRef:        imageRef,
		RuntimeClass:    m.cfg.RuntimeClass,
		NanoCPUs:        int64(m.cfg.CPUCores * 1e9),
		MemoryBytes:     m.cfg.MemoryBytes,
		ResultsHostDir:  resultsDir,
		NetworkDisabled: s.Configuration.NetworkDisabled,
		UserEmul:        s.Configuration.UserEmul,
		Entrypoint:      []string{filepath.Join(sandbox.ResultsMountPath, s.BinaryFile())},
	}
	handle, err := m.runtime.RunSandbox(ctx, runSpec)
	if err != nil {
		s.State = Cancelled
		_ = m.runtime.Teardown(ctx, s.ID, imageRef)
		metrics.SessionsCompleted.WithLabelValues("run_failed").Inc()
		return err
	}

	now := time.Now()
	s.ExecutedAt = &now
	if err := m.persist(s); err != nil {
		s.State = Cancelled
		_ = m.runtime.Teardown(ctx, s.ID, imageRef)
		return err
	}
	s.State = Executing

	stop := make(chan struct{})
	var stopOnce sync.Once
	closeStop := func() { stopOnce.Do(func() { close(stop) }) }
	sampler :=containerstats.New(m.runtime.Client(), handle.ContainerID, s.ID, time.Duration(m.cfg.SampleIntervalMS)*time.Millisecond)
	samplerDone := make(chan error, 1)
	go func() { samplerDone <- sampler.Run(ctx, stop) }()

	sup := supervisorFor(m.cfg, func() {
		slog.Warn("session soft timeout warning", "session_id", s.ID)
	}, func() {
		metrics.TimeoutElapsedTotal.Inc()
		closeStop()
	})
	defer sup.Cancel()

	execCtx := ctx
	if m.cfg.HardTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, m.cfg.HardTimeout)
		defer cancel()
	}

	var benchErr error
	var bm *benchmarker.Benchmarker
	if s.ProcessMonitorFlag {
		bm = benchmarker.New(time.Duration(m.cfg.SampleIntervalMS) * time.Millisecond)
		env := map[string]string{
			"ANALYSIS_ID":    s.ID,
			"RESULTS_FOLDER": sandbox.ResultsMountPath,
			"QUEUE_URL":      m.cfg.QueueURL,
			"QUEUE_NAME":     m.cfg.QueueName,
		}
		go m.emitter.StartPeriodic(ctx, s.ID, bm.Snapshot, stop, m.cfg.PublishInterval)

		type execOutcome struct {
			res *sandbox.ExecResult
			err error
		}
		execDone := make(chan execOutcome, 1)
		go func() {
			res, err := m.runtime.ExecInSandbox(execCtx, handle, runSpec.Entrypoint, env, bm.ObserveTarget)
			execDone <- execOutcome{res, err}
		}()

		samplingStop := make(chan struct{})
		go bm.RunSampling(execCtx, stop, samplingStop)

		outcome := <-execDone
		close(samplingStop)
		benchErr = outcome.err

		exitCode, terminated := 0, outcome.err != nil
		stdout, stderr := "", ""
		if outcome.res != nil {
			exitCode, stdout, stderr = int(outcome.res.ExitCode), outcome.res.Stdout, outcome.res.Stderr
		}
		bm.Complete(exitCode, terminated, stdout, stderr)

		sup.Cancel()
		closeStop()
	} else {
		// Only the container sampler runs; wait for the container's own
		// entrypoint (the target binary, when user_emul=true) to exit
		// via the daemon's wait API, bounded by the hard timeout.
		_, waitErr := m.runtime.WaitContainer(execCtx, handle.ContainerID)
		if waitErr != nil {
			benchErr = waitErr
		}
		sup.Cancel()
		closeStop()
	}

	<-samplerDone

	outcome := "executed"
	if benchErr != nil {
		outcome = "target_failed"
	}
	metrics.SessionsCompleted.WithLabelValues(outcome).Inc()

	if err := m.publishFinal(ctx, s, handle.ContainerID, sampler, bm); err != nil {
		slog.Warn("failed to publish final report bundle", "session_id", s.ID, "error", err)
	}

	if err := m.runtime.Teardown(ctx, s.ID, imageRef); err != nil {
		slog.Warn("teardown reported an error", "session_id", s.ID, "error", err)
	}

	if s.Configuration.ProvideRawSeries && m.scraper != nil {
		m.runScraper(ctx, s)
	}

	if s.Configuration.PersistToStore {
		if err := m.persist(s); err != nil {
			return err
		}
	}

	s.State = Executed
	return nil
}

func (m *Manager) publishFinal(ctx context.Context, s *Session, containerID string, sampler *containerstats.Sampler, bm *benchmarker.Benchmarker) error {
	containerSnap := sampler.Snapshot()
	containerEnv := report.Envelope{
		SessionID:  s.ID,
		ReportType: report.TypeContainerStats,
		Metadata:   map[string]any{"container_id": containerID},
		Result:     containerSnap,
	}
	if err := m.emitter.PublishFinal(ctx, containerEnv); err != nil {
		metrics.ReportPublishFailures.Inc()
		return err
	}
	s.AppendReport(fmt.Sprintf("%s-container-stats", s.ID))

	if bm == nil {
		return nil
	}

	bmSnap := bm.Snapshot()
	benchEnv := report.Envelope{
		SessionID:  s.ID,
		ReportType: report.TypeBenchmarker,
		Metadata:   map[string]any{"target_pid": bmSnap.TargetPID},
		Result:     bmSnap,
		Statistics: trace.GetStatisticsFull(bmSnap, onlineCPUCount()),
	}
	if err := m.emitter.PublishFinal(ctx, benchEnv); err != nil {
		metrics.ReportPublishFailures.Inc()
		return err
	}
	s.AppendReport(fmt.Sprintf("%s-benchmarker", s.ID))
	return nil
}

// onlineCPUCount reports the host's logical CPU count for CPU% normalization
// (spec §4.2); a read failure falls back to single-core normalization.
func onlineCPUCount() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func (m *Manager) runScraper(ctx context.Context, s *Session) {
	window := scraper.DefaultWindow(s.ID, time.Now())
	if s.Configuration.ScrapeIntervalS > 0 {
		window.Step = time.Duration(s.Configuration.ScrapeIntervalS) * time.Second
	}
	results, err := m.scraper.FetchAll(ctx, window, scraper.DefaultMetrics)
	if err != nil {
		slog.Warn("scraper adapter failed", "session_id", s.ID, "error", err)
		return
	}
	env, err := scraper.PersistResults(m.store, s.ID, results)
	if err != nil {
		slog.Warn("failed to persist scraper results", "session_id", s.ID, "error", err)
		return
	}
	if err := m.emitter.PublishFinal(ctx, env); err != nil {
		slog.Warn("failed to publish scraper report", "session_id", s.ID, "error", err)
		return
	}
	s.AppendReport(fmt.Sprintf("%s-scraper", s.ID))
}
