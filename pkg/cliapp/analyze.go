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
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/sandboxd/pkg/errs"
	"github.com/NVIDIA/sandboxd/pkg/session"
)

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "execute one session, or every session document in a directory",
		Description: `Runs a previously declared session through the full execution state
machine (spec §4.5): build, run, sample, teardown, publish. "--session"
runs a single session by id. "--dir" runs every session-<id>.json file
found in the given directory and reports the last failure's exit code.
Exactly one of the two must be given.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Usage: "id of a previously declared session"},
			&cli.StringFlag{Name: "dir", Usage: "directory of session-<id>.json documents to run"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sessionID := cmd.String("session")
			dir := cmd.String("dir")
			if (sessionID == "") == (dir == "") {
				return errs.New(errs.KindUserInput, "cliapp.analyze", "specify exactly one of --session or --dir")
			}

			d, err := newDeps(cmd)
			if err != nil {
				return err
			}
			defer d.close()

			if dir != "" {
				return analyzeDir(ctx, d.manager, dir)
			}
			return d.manager.Execute(ctx, sessionID)
		},
	}
}

// analyzeDir executes every session document in dir, continuing past
// individual failures and returning the last one (spec's original
// batch-analyze behavior: run all, report what broke).
func analyzeDir(ctx context.Context, mgr *session.Manager, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errs.Wrap(errs.KindUserInput, "cliapp.analyzeDir", "read directory", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "session-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, name[len("session-"):len(name)-len(".json")])
	}

	if len(ids) == 0 {
		return errs.New(errs.KindUserInput, "cliapp.analyzeDir", fmt.Sprintf("no session documents found in %s", dir))
	}

	var lastErr error
	for _, id := range ids {
		if err := mgr.Execute(ctx, id); err != nil {
			slog.Error("session execution failed", "session_id", id, "error", err)
			lastErr = err
			continue
		}
		slog.Info("session executed", "session_id", id)
	}
	return lastErr
}
