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

// Package defaults provides centralized configuration constants for sandboxd.
//
// This package defines timeout values, cadences, and resource limits used
// across the codebase. Centralizing these values ensures consistency and
// makes tuning easier.
//
// # Constant Categories
//
// Constants are organized by component:
//
//   - Session timeouts: soft/hard kill thresholds enforced by the Timeout Supervisor
//   - Sampler cadences: tick periods shared by the benchmarker and container sampler
//   - Sandbox resource limits: default CPU/memory caps applied per session
//   - Queue and scraper timeouts: durations used by the report and metrics collaborators
//   - Server timeouts: graceful shutdown for this process's own metrics endpoint
//
// # Usage
//
// Import and use constants directly:
//
//	import "github.com/NVIDIA/sandboxd/pkg/defaults"
//
//	ctx, cancel := context.WithTimeout(ctx, defaults.HardTimeout)
//	defer cancel()
package defaults
