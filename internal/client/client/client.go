package client

import (
	"context"
	"io"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/common"
)

// Metadata is what HEAD reveals about a transfer.
type Metadata struct {
	Size      int64
	ExpiresAt time.Time
}

type Client interface {
	Configuration(ctx context.Context) (common.ServerConfiguration, error)
	// Upload streams body to the relay. An empty id lets the relay pick one.
	Upload(ctx context.Context, id string, body io.Reader) (common.CreateTransferResponse, error)
	// Download returns the ciphertext stream and its length.
	Download(ctx context.Context, id string) (io.ReadCloser, int64, error)
	Metadata(ctx context.Context, id string) (Metadata, error)
	Delete(ctx context.Context, id, token string) error
}
