package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/filex"
	"github.com/dmitrijs2005/gophxfer/internal/server/models"
	"github.com/fxamacker/cbor/v2"
)

// RecordIndex persists transfer metadata so that the table survives a relay
// restart.
type RecordIndex interface {
	Save(ctx context.Context, t *models.Transfer) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Transfer, error)
}

type sidecarRecord struct {
	ID        string    `cbor:"id"`
	Size      int64     `cbor:"size"`
	CreatedAt time.Time `cbor:"created_at"`
	ExpiresAt time.Time `cbor:"expires_at"`
}

// SidecarIndex stores one CBOR document per transfer at
// <root>/transfers/<id>/meta, next to the fs blob.
type SidecarIndex struct {
	root string
	enc  cbor.EncMode
	dec  cbor.DecMode
}

func NewSidecarIndex(root string) (*SidecarIndex, error) {
	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	if _, err := filex.EnsureDir(filepath.Join(root, transfersDir)); err != nil {
		return nil, err
	}
	return &SidecarIndex{root: root, enc: enc, dec: dec}, nil
}

func (x *SidecarIndex) path(id string) string {
	return filepath.Join(transferDir(x.root, id), metaName)
}

func (x *SidecarIndex) Save(ctx context.Context, t *models.Transfer) error {
	b, err := x.enc.Marshal(sidecarRecord{
		ID:        t.ID,
		Size:      t.Size,
		CreatedAt: t.CreatedAt.UTC(),
		ExpiresAt: t.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", t.ID, err)
	}
	if _, err := filex.EnsureDir(transferDir(x.root, t.ID)); err != nil {
		return err
	}
	return filex.WriteFileAtomic(x.path(t.ID), b, 0o600)
}

func (x *SidecarIndex) Delete(ctx context.Context, id string) error {
	if err := filex.RemoveIfExists(x.path(id)); err != nil {
		return err
	}
	filex.RemoveEmptyDir(transferDir(x.root, id))
	return nil
}

// List decodes every sidecar it finds. Unreadable documents are skipped; the
// blobs they described are then swept as orphans by Engine.Restore.
func (x *SidecarIndex) List(ctx context.Context) ([]*models.Transfer, error) {
	ids, err := listTransferDirs(x.root, metaName)
	if err != nil {
		return nil, err
	}

	var out []*models.Transfer
	for _, id := range ids {
		b, err := os.ReadFile(x.path(id))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var rec sidecarRecord
		if err := x.dec.Unmarshal(b, &rec); err != nil || rec.ID != id {
			continue
		}
		out = append(out, &models.Transfer{
			ID:        rec.ID,
			Size:      rec.Size,
			CreatedAt: rec.CreatedAt,
			ExpiresAt: rec.ExpiresAt,
		})
	}
	return out, nil
}
