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
	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/sandboxd/pkg/config"
	"github.com/NVIDIA/sandboxd/pkg/errs"
	"github.com/NVIDIA/sandboxd/pkg/report"
	"github.com/NVIDIA/sandboxd/pkg/sandbox"
	"github.com/NVIDIA/sandboxd/pkg/scraper"
	"github.com/NVIDIA/sandboxd/pkg/session"
	"github.com/NVIDIA/sandboxd/pkg/store"
)

// deps bundles the collaborators a command's Action needs. Built fresh per
// invocation from the resolved config; cheap collaborators (store, queue
// handle, scraper adapter) are lazily dialed on first use by their own
// packages, so constructing deps never itself requires a live daemon.
type deps struct {
	cfg     *config.Config
	store   *store.Store
	runtime *sandbox.Runtime
	manager *session.Manager
}

// close releases any collaborator holding a live connection.
func (d *deps) close() {
	if d.runtime != nil {
		_ = d.runtime.Close()
	}
}

// newDeps resolves the process configuration from the --config flag and
// wires every collaborator the Session Manager depends on (spec §9's
// global-daemon-handle pattern: one Runtime and one Queue per process).
func newDeps(cmd *cli.Command) (*deps, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, errs.Wrap(errs.KindUserInput, "cliapp.newDeps", "load config", err)
	}

	st, err := store.New(cfg.ResultsDir)
	if err != nil {
		return nil, errs.Wrap(errs.KindEnvironmentUnavailable, "cliapp.newDeps", "open document store", err)
	}

	rt, err := sandbox.New(cfg.DockerHost)
	if err != nil {
		return nil, err
	}

	emitter := report.NewEmitter(report.NewQueue(cfg.QueueURL, cfg.QueueName))

	var sc *scraper.Adapter
	if cfg.ScraperBaseURL != "" {
		sc, err = scraper.New(cfg.ScraperBaseURL)
		if err != nil {
			rt.Close()
			return nil, errs.Wrap(errs.KindEnvironmentUnavailable, "cliapp.newDeps", "build scraper adapter", err)
		}
	}

	mgr := session.NewManager(st, rt, emitter, sc, cfg)
	return &deps{cfg: cfg, store: st, runtime: rt, manager: mgr}, nil
}
