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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/sandboxd/pkg/errs"
	"github.com/NVIDIA/sandboxd/pkg/session"
)

func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "binary", Required: true, Usage: "path to the target binary"},
		&cli.StringFlag{Name: "name", Usage: "human-readable session name (default: binary's base name)"},
		&cli.BoolFlag{Name: "user-emul", Usage: "run the target binary as the container entrypoint"},
		&cli.BoolFlag{Name: "process-monitor", Usage: "run the in-sandbox benchmarker (process_monitor_flag)"},
		&cli.BoolFlag{Name: "network-disabled", Usage: "disable container networking"},
		&cli.StringFlag{Name: "base-image", Usage: "base image tag to build the sandbox from"},
		&cli.BoolFlag{Name: "provide-raw-series", Usage: "pull external metrics scraper series for this session"},
		&cli.BoolFlag{Name: "persist", Usage: "persist the session document after execution"},
		&cli.IntFlag{Name: "scrape-interval-s", Value: 2, Usage: "scraper range-query step, in seconds"},
	}
}

func sessionConfigFromCmd(cmd *cli.Command) session.Configuration {
	return session.Configuration{
		ProvideRawSeries: cmd.Bool("provide-raw-series"),
		UserEmul:         cmd.Bool("user-emul"),
		BaseImageTag:     cmd.String("base-image"),
		ScrapeIntervalS:  int(cmd.Int("scrape-interval-s")),
		PersistToStore:   cmd.Bool("persist"),
		NetworkDisabled:  cmd.Bool("network-disabled"),
	}
}

func initSessionCmd() *cli.Command {
	return &cli.Command{
		Name:  "init-session",
		Usage: "declare a new analysis session",
		Description: `Computes the target binary's sha256, persists a session document, and
prints the new session id. The session does not run until "analyze
--session <id>" is invoked.`,
		Flags: sessionFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			d, err := newDeps(cmd)
			if err != nil {
				return err
			}
			defer d.close()

			s, err := declareSession(d.manager, cmd)
			if err != nil {
				return err
			}
			fmt.Println(s.ID)
			return nil
		},
	}
}

func declareSession(mgr *session.Manager, cmd *cli.Command) (*session.Session, error) {
	binaryPath := cmd.String("binary")
	sum, err := sha256File(binaryPath)
	if err != nil {
		return nil, errs.Wrap(errs.KindUserInput, "cliapp.declareSession", "hash binary", err)
	}

	name := cmd.String("name")
	if name == "" {
		name = filepath.Base(binaryPath)
	}

	buildArgs := map[string]string{"binary_file": filepath.Base(binaryPath)}
	cfg := sessionConfigFromCmd(cmd)

	return mgr.CreateSession(name, sum, buildArgs, cmd.Bool("process-monitor"), cfg)
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func listSessionsCmd() *cli.Command {
	return &cli.Command{
		Name:  "list-sessions",
		Usage: "list every persisted session id",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			d, err := newDeps(cmd)
			if err != nil {
				return err
			}
			defer d.close()

			ids, err := d.manager.ListSessions()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}
