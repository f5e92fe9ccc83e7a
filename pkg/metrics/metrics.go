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

// Package metrics exposes sandboxd's own operational metrics and health
// endpoints (spec §9 Design Notes: the daemon observes itself the same way
// it observes sandboxed targets).
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NVIDIA/sandboxd/pkg/defaults"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sandboxd_sessions_started_total",
		Help: "Total number of sessions that entered the Executing state.",
	})
	SessionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sandboxd_sessions_completed_total",
		Help: "Total number of sessions that reached a terminal state, by outcome.",
	}, []string{"outcome"})
	SessionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sandboxd_sessions_in_flight",
		Help: "Number of sessions currently executing.",
	})
	SampleTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sandboxd_sample_ticks_total",
		Help: "Total number of sampling ticks taken, by sampler.",
	}, []string{"sampler"})
	ReportPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sandboxd_report_publish_failures_total",
		Help: "Total number of report-queue publish failures after retry exhaustion.",
	})
	TimeoutElapsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sandboxd_timeout_elapsed_total",
		Help: "Total number of sessions killed by the hard timeout.",
	})
)

// Server exposes /healthz, /readyz, and /metrics on a dedicated listen
// address, independent of any per-session sandbox traffic.
type Server struct {
	addr string
	mu   sync.RWMutex
	ready bool
	srv  *http.Server
}

// New returns a metrics Server bound to addr (e.g. ":9464").
func New(addr string) *Server {
	return &Server{addr: addr}
}

// SetReady flips the readiness flag reported by /readyz.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

func (s *Server) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Start runs the HTTP server until the context is cancelled, then shuts it
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !s.isReady() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaults.MetricsServerShutdownTimeout)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
