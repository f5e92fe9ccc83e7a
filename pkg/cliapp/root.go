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

package cliapp

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/sandboxd/pkg/logging"
)

const appName = "sandboxd"

// configFlag and logLevelFlag are shared across every subcommand.
var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path to a sandboxd config YAML file (defaults if absent)",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Value: "info",
		Usage: "log level: debug, info, warn, error",
	}
)

// Root builds the sandboxd command tree (spec §6).
func Root(version string) *cli.Command {
	return &cli.Command{
		Name:                  appName,
		Version:               version,
		EnableShellCompletion: true,
		Usage:                 "run and observe sandboxed binary analysis sessions",
		Description: `sandboxd analyzes potentially malicious binaries inside isolated sandboxed
containers, recording resource-usage telemetry and publishing report bundles.

# Workflow

  sandboxd init-session --binary ./cpu_task --process-monitor
  sandboxd list-sessions
  sandboxd analyze --session <id>

Or run every session-<id>.json document in a directory:

  sandboxd analyze --dir ./sessions`,
		Flags: []cli.Flag{configFlag, logLevelFlag},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			slog.SetDefault(logging.New(appName, version, cmd.String("log-level")))
			return ctx, nil
		},
		Commands: []*cli.Command{
			initSessionCmd(),
			listSessionsCmd(),
			analyzeCmd(),
			monitorCmd(),
			backendCmd(),
		},
	}
}
