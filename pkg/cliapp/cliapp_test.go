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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootHasEveryCommand(t *testing.T) {
	root := Root("test")
	want := []string{"init-session", "list-sessions", "analyze", "monitor", "backend"}
	var got []string
	for _, c := range root.Commands {
		got = append(got, c.Name)
	}
	assert.ElementsMatch(t, want, got)
}

func TestSha256FileMatchesKnownContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	sum, err := sha256File(path)
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)
}

func TestSha256FileMissingPath(t *testing.T) {
	_, err := sha256File(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestAnalyzeDirFailsOnEmptyDirectory(t *testing.T) {
	err := analyzeDir(nil, nil, t.TempDir())
	assert.Error(t, err)
}

func TestAnalyzeDirFailsOnMissingDirectory(t *testing.T) {
	err := analyzeDir(nil, nil, filepath.Join(t.TempDir(), "nonexistent"))
	assert.Error(t, err)
}

func TestAnalyzeCmdRejectsBothSessionAndDir(t *testing.T) {
	cmd := analyzeCmd()
	err := cmd.Run(context.Background(), []string{"analyze", "--session", "abc", "--dir", "/tmp"})
	assert.Error(t, err)
}

func TestAnalyzeCmdRejectsNeitherSessionNorDir(t *testing.T) {
	cmd := analyzeCmd()
	err := cmd.Run(context.Background(), []string{"analyze"})
	assert.Error(t, err)
}

func TestBackendCmdRejectsUnknownSubcommand(t *testing.T) {
	cmd := backendCmd()
	err := cmd.Run(context.Background(), []string{"backend", "sideways"})
	assert.Error(t, err)
}

func TestInitSessionCmdRequiresBinaryFlag(t *testing.T) {
	cmd := initSessionCmd()
	err := cmd.Run(context.Background(), []string{"init-session"})
	assert.Error(t, err)
}
