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

package sandbox

import (
	"context"
	"fmt"

	systemdDbus "github.com/coreos/go-systemd/v22/dbus"

	"github.com/NVIDIA/sandboxd/pkg/errs"
)

// PreflightUnits are the host units the runtime depends on; a hardened
// sandbox additionally requires the runtime-class shim's unit when
// configured (e.g. a user-space kernel daemon).
var PreflightUnits = []string{"docker.service", "containerd.service"}

// CheckHostUnits verifies the given systemd units are active, failing fast
// with an environment-unavailable error (spec §4.5 step 2's
// daemon-availability philosophy, applied to the host side rather than just
// the broker). It is run by the CLI's "backend up" check; Session Manager
// execution does not call it. An unreachable systemd bus is also an
// environment-unavailable error.
func CheckHostUnits(ctx context.Context, units []string) error {
	conn, err := systemdDbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return errs.Wrap(errs.KindEnvironmentUnavailable, "sandbox.CheckHostUnits", "connect to systemd", err)
	}
	defer conn.Close()

	for _, unit := range units {
		props, err := conn.GetUnitPropertiesContext(ctx, unit)
		if err != nil {
			return errs.Wrap(errs.KindEnvironmentUnavailable, "sandbox.CheckHostUnits", fmt.Sprintf("query unit %s", unit), err)
		}
		state, _ := props["ActiveState"].(string)
		if state != "active" {
			return errs.New(errs.KindEnvironmentUnavailable, "sandbox.CheckHostUnits", fmt.Sprintf("unit %s is not active (state=%s)", unit, state))
		}
	}
	return nil
}
