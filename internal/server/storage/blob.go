package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophxfer/internal/common"
	"github.com/dmitrijs2005/gophxfer/internal/filex"
	"github.com/dmitrijs2005/gophxfer/internal/wordkey"
)

const (
	transfersDir = "transfers"
	stagingDir   = "staging"
	blobName     = "blob"
	metaName     = "meta"
)

// BlobStore holds the encrypted content of committed transfers.
type BlobStore interface {
	// Promote takes ownership of the staged file at path and stores it
	// under id. The staged file may be moved or left in place.
	Promote(ctx context.Context, id, path string, size int64) error
	// Open returns the content stored under id, or common.ErrNotFound.
	Open(ctx context.Context, id string) (io.ReadCloser, error)
	// Remove deletes the content stored under id. Missing content is not
	// an error.
	Remove(ctx context.Context, id string) error
	// List returns the ids that have content.
	List(ctx context.Context) ([]string, error)
}

// FSBlobStore keeps blobs at <root>/transfers/<id>/blob.
type FSBlobStore struct {
	root string
}

func NewFSBlobStore(root string) (*FSBlobStore, error) {
	if _, err := filex.EnsureDir(filepath.Join(root, transfersDir)); err != nil {
		return nil, err
	}
	return &FSBlobStore{root: root}, nil
}

func transferDir(root, id string) string {
	return filepath.Join(root, transfersDir, id)
}

func (s *FSBlobStore) path(id string) string {
	return filepath.Join(transferDir(s.root, id), blobName)
}

func (s *FSBlobStore) Promote(ctx context.Context, id, path string, size int64) error {
	if _, err := filex.EnsureDir(transferDir(s.root, id)); err != nil {
		return err
	}
	if err := os.Rename(path, s.path(id)); err != nil {
		return fmt.Errorf("promote %s: %w", id, err)
	}
	return nil
}

func (s *FSBlobStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FSBlobStore) Remove(ctx context.Context, id string) error {
	if err := filex.RemoveIfExists(s.path(id)); err != nil {
		return err
	}
	filex.RemoveEmptyDir(transferDir(s.root, id))
	return nil
}

func (s *FSBlobStore) List(ctx context.Context) ([]string, error) {
	return listTransferDirs(s.root, blobName)
}

// listTransferDirs returns ids under <root>/transfers that contain file name.
func listTransferDirs(root, name string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, transfersDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if !e.IsDir() || !wordkey.ValidIdentifier(e.Name()) {
			continue
		}
		ok, err := filex.Exists(filepath.Join(root, transfersDir, e.Name(), name))
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
