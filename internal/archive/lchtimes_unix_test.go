//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package archive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip_SymlinkModTime(t *testing.T) {
	root := buildTree(t)
	mtime := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, lchtimes(filepath.Join(root, "link"), mtime))

	var buf bytes.Buffer
	_, err := Write(context.Background(), root, &buf)
	require.NoError(t, err)

	dest := t.TempDir()
	_, err = Extract(context.Background(), &buf, dest)
	require.NoError(t, err)

	fi, err := os.Lstat(filepath.Join(dest, "root", "link"))
	require.NoError(t, err)
	require.NotZero(t, fi.Mode()&os.ModeSymlink)
	assert.True(t, fi.ModTime().Equal(mtime), "got %s", fi.ModTime())

	// the target keeps its own time
	target, err := os.Stat(filepath.Join(dest, "root", "a.txt"))
	require.NoError(t, err)
	assert.False(t, target.ModTime().Equal(mtime))
}
