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

// Package scraper implements the Scraper Adapter (spec §4.7): after a
// session's execution completes, it issues N concurrent range queries to an
// external metrics scraper and persists the raw responses.
package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	promodel "github.com/prometheus/common/model"
	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/sandboxd/pkg/defaults"
	"github.com/NVIDIA/sandboxd/pkg/errs"
)

// Metric identifies one of the N metric families queried per session (spec
// §4.7: CPU %, working-set memory, filesystem usage, filesystem throughput,
// network throughput).
type Metric struct {
	// ID is used to derive the per-metric filename.
	ID    string
	Query string
}

// DefaultMetrics is the fixed family of range queries issued per session.
// The {{session}} placeholder is substituted with the container name
// pattern for the session (spec §4.7: "parameterized by the session id to
// match the sandbox container name pattern").
var DefaultMetrics = []Metric{
	{ID: "cpu_percent", Query: `rate(container_cpu_usage_seconds_total{name=~"{{session}}.*"}[1m]) * 100`},
	{ID: "working_set_memory", Query: `container_memory_working_set_bytes{name=~"{{session}}.*"}`},
	{ID: "filesystem_usage", Query: `container_fs_usage_bytes{name=~"{{session}}.*"}`},
	{ID: "filesystem_throughput", Query: `rate(container_fs_reads_bytes_total{name=~"{{session}}.*"}[1m]) + rate(container_fs_writes_bytes_total{name=~"{{session}}.*"}[1m])`},
	{ID: "network_throughput", Query: `rate(container_network_receive_bytes_total{name=~"{{session}}.*"}[1m]) + rate(container_network_transmit_bytes_total{name=~"{{session}}.*"}[1m])`},
}

// Result is one metric family's raw range-query response.
type Result struct {
	MetricID string
	Matrix   promodel.Matrix
}

// Adapter queries an external Prometheus-compatible scraper over HTTP.
type Adapter struct {
	api promv1.API
}

// New constructs an Adapter against baseURL (e.g. http://localhost:9090).
func New(baseURL string) (*Adapter, error) {
	client, err := promapi.NewClient(promapi.Config{Address: baseURL})
	if err != nil {
		return nil, errs.Wrap(errs.KindEnvironmentUnavailable, "scraper.New", "construct scraper client", err)
	}
	return &Adapter{api: promv1.NewAPI(client)}, nil
}

// QueryWindow is the step/end-time/look-back parameterization for a
// session's range queries (spec §4.7).
type QueryWindow struct {
	SessionID string
	Step      time.Duration
	End       time.Time
	LookBack  time.Duration
}

// RoundedEnd rounds w.End down to the nearest 30 seconds, per spec §4.7.
func (w QueryWindow) RoundedEnd() time.Time {
	const bucket = 30 * time.Second
	return w.End.Truncate(bucket)
}

// DefaultWindow builds a QueryWindow with the spec's defaults: step 2s,
// end rounded to the nearest 30s, 1-hour look-back.
func DefaultWindow(sessionID string, now time.Time) QueryWindow {
	return QueryWindow{
		SessionID: sessionID,
		Step:      defaults.ScrapeInterval,
		End:       now,
		LookBack:  time.Hour,
	}
}

// FetchAll issues all N metric queries concurrently (spec §4.7) and returns
// one Result per metric, in the same order as metrics.
func (a *Adapter) FetchAll(ctx context.Context, window QueryWindow, metrics []Metric) ([]Result, error) {
	results := make([]Result, len(metrics))
	g, gctx := errgroup.WithContext(ctx)

	end := window.RoundedEnd()
	start := end.Add(-window.LookBack)
	r := promv1.Range{Start: start, End: end, Step: window.Step}

	for i, m := range metrics {
		i, m := i, m
		g.Go(func() error {
			query := strings.ReplaceAll(m.Query, "{{session}}", window.SessionID)
			value, _, err := a.api.QueryRange(gctx, query, r)
			if err != nil {
				return errs.Wrap(errs.KindEnvironmentUnavailable, "scraper.FetchAll", fmt.Sprintf("query_range for %s", m.ID), err)
			}
			matrix, ok := value.(promodel.Matrix)
			if !ok {
				return errs.New(errs.KindEnvironmentUnavailable, "scraper.FetchAll", fmt.Sprintf("unexpected result type for %s", m.ID))
			}
			results[i] = Result{MetricID: m.ID, Matrix: matrix}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
