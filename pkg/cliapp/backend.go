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

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/sandboxd/pkg/config"
	"github.com/NVIDIA/sandboxd/pkg/errs"
	"github.com/NVIDIA/sandboxd/pkg/report"
	"github.com/NVIDIA/sandboxd/pkg/sandbox"
)

func backendCmd() *cli.Command {
	return &cli.Command{
		Name:      "backend",
		Usage:     "check or tear down the sandbox runtime's host dependencies",
		ArgsUsage: "up|down",
		Description: `"up" verifies the container daemon and durable queue are reachable and the
required host units are active, failing fast before any session attempts
to run. "down" tears down every container and image this process owns,
regardless of session (an emergency reset, not part of normal operation).`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			switch cmd.Args().First() {
			case "up":
				return backendUp(ctx, cmd)
			case "down":
				return backendDown(ctx, cmd)
			default:
				return errs.New(errs.KindUserInput, "cliapp.backend", `expected "up" or "down"`)
			}
		},
	}
}

func backendUp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return errs.Wrap(errs.KindUserInput, "cliapp.backend", "load config", err)
	}

	if err := sandbox.CheckHostUnits(ctx, sandbox.PreflightUnits); err != nil {
		return err
	}

	rt, err := sandbox.New(cfg.DockerHost)
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := rt.Ping(ctx); err != nil {
		return err
	}

	q := report.NewQueue(cfg.QueueURL, cfg.QueueName)
	defer q.Close()
	if err := q.Ping(ctx); err != nil {
		return err
	}

	fmt.Println("backend up: container daemon and queue are reachable")
	return nil
}

func backendDown(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return errs.Wrap(errs.KindUserInput, "cliapp.backend", "load config", err)
	}

	rt, err := sandbox.New(cfg.DockerHost)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.TeardownAll(ctx); err != nil {
		return err
	}
	fmt.Println("backend down: all owned containers and images removed")
	return nil
}
