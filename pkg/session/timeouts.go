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
	"github.com/NVIDIA/sandboxd/pkg/config"
	"github.com/NVIDIA/sandboxd/pkg/timeoutsup"
)

// supervisorFor arms a Timeout Supervisor using the process-wide soft/hard
// defaults (spec §5: timeouts are not a per-session Configuration field).
func supervisorFor(cfg *config.Config, onWarn, onKill func()) *timeoutsup.Supervisor {
	return timeoutsup.New(cfg.SoftTimeout, cfg.HardTimeout, onWarn, onKill)
}
