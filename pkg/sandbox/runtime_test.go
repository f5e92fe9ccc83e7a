package sandbox

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTarDirectoryIncludesAllFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "payload.bin"), []byte("x"), 0o644))

	r, err := tarDirectory(dir)
	require.NoError(t, err)

	tr := tar.NewReader(r)
	seen := map[string]bool{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		seen[hdr.Name] = true
	}
	assert.True(t, seen["Dockerfile"])
	assert.True(t, seen[filepath.Join("sub", "payload.bin")])
}

func TestResolveBaseImageEmptyTag(t *testing.T) {
	ref, err := ResolveBaseImage(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, ref)
}

func TestResolveBaseImageRejectsMalformed(t *testing.T) {
	_, err := ResolveBaseImage(context.Background(), "NOT A VALID REF :::")
	assert.Error(t, err)
}
