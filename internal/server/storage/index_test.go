package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSidecarIndex_SaveListDelete(t *testing.T) {
	dir := t.TempDir()
	x, err := NewSidecarIndex(dir)
	require.NoError(t, err)
	ctx := context.Background()

	created := time.Date(2025, 3, 1, 10, 0, 0, 123, time.UTC)
	tr := &models.Transfer{ID: testID, Size: 42, CreatedAt: created, ExpiresAt: created.Add(time.Hour)}
	require.NoError(t, x.Save(ctx, tr))

	list, err := x.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, tr.ID, list[0].ID)
	assert.Equal(t, tr.Size, list[0].Size)
	assert.True(t, tr.CreatedAt.Equal(list[0].CreatedAt))
	assert.True(t, tr.ExpiresAt.Equal(list[0].ExpiresAt))

	require.NoError(t, x.Delete(ctx, testID))
	require.NoError(t, x.Delete(ctx, testID))

	list, err = x.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSidecarIndex_SkipsCorruptDocuments(t *testing.T) {
	dir := t.TempDir()
	x, err := NewSidecarIndex(dir)
	require.NoError(t, err)

	bad := filepath.Join(dir, transfersDir, testID)
	require.NoError(t, os.MkdirAll(bad, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(bad, metaName), []byte{0xff, 0x00}, 0o600))

	// a directory that is not an identifier is ignored outright
	require.NoError(t, os.MkdirAll(filepath.Join(dir, transfersDir, "Not An Id"), 0o700))

	list, err := x.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFSBlobStore_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSBlobStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	staged := filepath.Join(t.TempDir(), "staged")
	require.NoError(t, os.WriteFile(staged, []byte("blob"), 0o600))
	require.NoError(t, s.Promote(ctx, testID, staged, 4))

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{testID}, ids)

	rc, err := s.Open(ctx, testID)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	require.NoError(t, s.Remove(ctx, testID))
	require.NoError(t, s.Remove(ctx, testID))

	_, err = s.Open(ctx, testID)
	assert.Error(t, err)
	ids, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
