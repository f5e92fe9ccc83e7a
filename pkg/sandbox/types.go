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

// Package sandbox encapsulates per-session image build, container run, and
// teardown against a container daemon (spec §4.4).
package sandbox

import "time"

// OwnerLabel tags every container this package launches so that teardown by
// label is safe and discoverable (spec §6 "Container labels").
const OwnerLabel = "created_by"

// OwnerValue is the label value applied by this component.
const OwnerValue = "SandboxHandler"

// ResultsMountPath is the fixed in-container path the host results
// directory is bind-mounted onto.
const ResultsMountPath = "/var/lib/sandboxd/results"

// BuildSpec describes the image to build for a session.
type BuildSpec struct {
	SessionID     string
	BaseImageTag  string
	BuildArgs     map[string]string
	DockerfileDir string
}

// RunSpec describes how to launch a session's sandbox container.
type RunSpec struct {
	SessionID        string
	ImageRef         string
	RuntimeClass     string // "" falls back to the daemon default
	NanoCPUs         int64  // default 4 cores, see spec §4.4
	MemoryBytes      int64  // default 8 GiB
	ResultsHostDir   string
	NetworkDisabled  bool
	UserEmul         bool
	Entrypoint       []string // the target binary's argv, used when UserEmul
	Environment      map[string]string
}

// Handle identifies a running sandbox container.
type Handle struct {
	ContainerID string
	ImageRef    string
	StartedAt   time.Time
}

// ExecResult is the outcome of running a command inside an already-running
// sandbox container (spec §4.4 exec_in_sandbox).
type ExecResult struct {
	ExitCode int64
	Stdout   string
	Stderr   string
}
