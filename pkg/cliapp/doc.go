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

// Package cliapp implements the command-line interface for sandboxd.
//
// # Commands
//
// init-session - Declare a new session (Step 1):
//
//	sandboxd init-session --binary ./cpu_task --name smoke-test
//	sandboxd init-session --binary ./cpu_task --user-emul --process-monitor --network-disabled
//
// Computes the target binary's sha256, persists a session document, and
// prints the new session id.
//
// list-sessions - Enumerate persisted sessions (Step 2):
//
//	sandboxd list-sessions
//
// analyze - Execute a session end to end (Step 3):
//
//	sandboxd analyze --session abc123
//	sandboxd analyze --dir ./sessions
//
// Either runs a previously declared session by id, or runs every
// session-<id>.json document found in a directory, one after another.
//
// monitor - Run the internal health/metrics endpoint:
//
//	sandboxd monitor
//	sandboxd monitor --stop
//
// backend - Manage the sandbox runtime's host dependencies:
//
//	sandboxd backend up
//	sandboxd backend down
//
// # Exit codes
//
// 0 success; 1 user error (session not found, binary missing); 2 runtime
// failure (sandbox, queue, scraper unreachable).
package cliapp
