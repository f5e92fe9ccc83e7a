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
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/sandboxd/pkg/config"
	"github.com/NVIDIA/sandboxd/pkg/errs"
	"github.com/NVIDIA/sandboxd/pkg/metrics"
)

// pidFilePath records the running monitor's pid so a later "--stop"
// invocation (a fresh process) can find and signal it.
func pidFilePath() string {
	return filepath.Join(os.TempDir(), "sandboxd-monitor.pid")
}

func monitorCmd() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "run (or stop) the internal health and metrics endpoint",
		Description: `Serves /healthz, /readyz, and /metrics on the configured metrics_addr
until interrupted. "--stop" signals a running "monitor" invocation to
shut down gracefully instead of starting a new one.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "stop", Usage: "stop a running monitor instance"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("stop") {
				return stopMonitor()
			}
			return runMonitor(ctx, cmd)
		},
	}
}

func runMonitor(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return errs.Wrap(errs.KindUserInput, "cliapp.monitor", "load config", err)
	}

	if err := os.WriteFile(pidFilePath(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return errs.Wrap(errs.KindEnvironmentUnavailable, "cliapp.monitor", "write pid file", err)
	}
	defer os.Remove(pidFilePath())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	srv := metrics.New(cfg.MetricsAddr)
	srv.SetReady(true)
	fmt.Printf("monitor listening on %s\n", cfg.MetricsAddr)
	return srv.Start(ctx)
}

func stopMonitor() error {
	raw, err := os.ReadFile(pidFilePath())
	if err != nil {
		return errs.Wrap(errs.KindUserInput, "cliapp.monitor", "no running monitor found", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return errs.Wrap(errs.KindUserInput, "cliapp.monitor", "corrupt pid file", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return errs.Wrap(errs.KindEnvironmentUnavailable, "cliapp.monitor", "find monitor process", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return errs.Wrap(errs.KindEnvironmentUnavailable, "cliapp.monitor", "signal monitor process", err)
	}
	fmt.Printf("stopped monitor pid %d\n", pid)
	return nil
}
