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

// Package store provides the file-backed document persistence this pipeline
// owns directly: the session definition file and the report documents a
// queue consumer would otherwise write into an external document store
// (spec §1, §6). The external document store and the web API that queries
// it remain out of scope; this package only produces the on-disk shape
// those collaborators would read.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/NVIDIA/sandboxd/pkg/errs"
)

// Store persists session and report documents as one JSON file each,
// keyed by filename, under a root directory.
type Store struct {
	root string
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.KindEnvironmentUnavailable, "store.New", "create results directory", err)
	}
	return &Store{root: dir}, nil
}

// SessionPath returns the path a session with the given id is persisted
// at: session-<id>.json (spec §6).
func (s *Store) SessionPath(id string) string {
	return filepath.Join(s.root, fmt.Sprintf("session-%s.json", id))
}

// ReportPath returns the path a report document is persisted at.
func (s *Store) ReportPath(sessionID, reportType string, seq int) string {
	return filepath.Join(s.root, fmt.Sprintf("report-%s-%s-%d.json", sessionID, reportType, seq))
}

// WriteJSON marshals v as indented JSON and writes it atomically: write to
// a temp file in the same directory, then rename, so a reader never
// observes a partially-written document.
func (s *Store) WriteJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindUserInput, "store.WriteJSON", "marshal document", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return errs.Wrap(errs.KindEnvironmentUnavailable, "store.WriteJSON", "write temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.KindEnvironmentUnavailable, "store.WriteJSON", "rename into place", err)
	}
	return nil
}

// ReadJSON unmarshals the document at path into v.
func (s *Store) ReadJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errs.Wrap(errs.KindUserInput, "store.ReadJSON", "document not found", err)
		}
		return errs.Wrap(errs.KindEnvironmentUnavailable, "store.ReadJSON", "read document", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errs.Wrap(errs.KindUserInput, "store.ReadJSON", "unmarshal document", err)
	}
	return nil
}

// List returns the base filenames matching glob under the store root (e.g.
// "session-*.json"), for the CLI's list-sessions command.
func (s *Store) List(glob string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, glob))
	if err != nil {
		return nil, errs.Wrap(errs.KindUserInput, "store.List", "invalid glob", err)
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = filepath.Base(m)
	}
	return names, nil
}

// Root returns the store's root directory, for components that need the
// host path to bind-mount into a sandbox.
func (s *Store) Root() string {
	return s.root
}
