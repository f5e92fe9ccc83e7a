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

package defaults

import "time"

// Session timeouts for the Timeout Supervisor (spec §4.5, §8).
const (
	// SoftTimeout is the default warn threshold before a session's hard
	// kill fires.
	SoftTimeout = 10 * time.Second

	// HardTimeout is the default kill threshold for a session's sandboxed
	// process.
	HardTimeout = 30 * time.Second
)

// Sampler timeouts and cadences shared by the process benchmarker and the
// container sampler.
const (
	// SampleInterval is the default tick period for both samplers.
	SampleInterval = 100 * time.Millisecond

	// PublishInterval is the Report Emitter's in-flight snapshot cadence.
	PublishInterval = 500 * time.Millisecond
)

// Sandbox resource limits applied when a session does not override them.
const (
	// CPUCores is the default CPU cap, in cores, applied to every sandbox.
	CPUCores = 4.0

	// MemoryBytes is the default memory cap applied to every sandbox.
	MemoryBytes = 8 << 30 // 8 GiB
)

// Queue and scraper timeouts for the report/metrics collaborators.
const (
	// QueuePublishBackoff is the base interval the Queue's rate limiter
	// enforces between retried publish attempts.
	QueuePublishBackoff = 200 * time.Millisecond

	// ScrapeInterval is the default step configured into the scraper's
	// range queries.
	ScrapeInterval = 2 * time.Second

	// TeardownGracePeriod is how long Teardown waits for a container to
	// stop cleanly before forcing removal.
	TeardownGracePeriod = 5 * time.Second
)

// Server timeouts for this process's own health/metrics HTTP endpoint.
const (
	// MetricsServerShutdownTimeout is the maximum duration for graceful
	// shutdown of the internal health/metrics endpoint.
	MetricsServerShutdownTimeout = 30 * time.Second
)
