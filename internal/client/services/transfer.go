// Package services wires the archive, cipher and relay client into the
// upload and download pipelines used by the CLI.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/archive"
	"github.com/dmitrijs2005/gophxfer/internal/client/client"
	"github.com/dmitrijs2005/gophxfer/internal/common"
	"github.com/dmitrijs2005/gophxfer/internal/cryptox"
	"github.com/dmitrijs2005/gophxfer/internal/filex"
	"github.com/dmitrijs2005/gophxfer/internal/logging"
	"github.com/dmitrijs2005/gophxfer/internal/wordkey"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const stagingPrefix = ".xfer-"

type UploadOptions struct {
	// ID requests a specific identifier. Empty lets the relay choose.
	ID string
}

type UploadResult struct {
	Key         wordkey.TransferKey
	ExpiresAt   time.Time
	DeleteToken string
	Summary     archive.Summary
	// Sent is the ciphertext size in bytes.
	Sent int64
}

type DownloadResult struct {
	// Names are the top-level entries placed in the destination.
	Names    []string
	Received int64
}

type TransferService interface {
	Configuration(ctx context.Context) (common.ServerConfiguration, error)
	Upload(ctx context.Context, src string, opts UploadOptions) (UploadResult, error)
	Download(ctx context.Context, key wordkey.TransferKey, dest string) (DownloadResult, error)
	Info(ctx context.Context, id string) (client.Metadata, error)
	Delete(ctx context.Context, id, token string) error
}

type transferService struct {
	client client.Client
	logger logging.Logger

	newSecret func() (string, error)
}

func NewTransferService(c client.Client, l logging.Logger) TransferService {
	if l == nil {
		l = logging.NewNop()
	}
	return &transferService{
		client:    c,
		logger:    l.With("module", "transfer_service"),
		newSecret: wordkey.NewSecret,
	}
}

func (s *transferService) Configuration(ctx context.Context) (common.ServerConfiguration, error) {
	return s.client.Configuration(ctx)
}

func (s *transferService) Info(ctx context.Context, id string) (client.Metadata, error) {
	if !wordkey.ValidIdentifier(id) {
		return client.Metadata{}, fmt.Errorf("%w: %q", common.ErrInvalidIdentifier, id)
	}
	return s.client.Metadata(ctx, id)
}

func (s *transferService) Delete(ctx context.Context, id, token string) error {
	if !wordkey.ValidIdentifier(id) {
		return fmt.Errorf("%w: %q", common.ErrInvalidIdentifier, id)
	}
	return s.client.Delete(ctx, id, token)
}

// opaqueReader hides Close so that the HTTP transport cannot close the pipe
// out from under the encrypt stage.
type opaqueReader struct{ io.Reader }

// Upload archives src, encrypts the stream under a fresh secret and sends it
// to the relay without buffering the whole transfer.
func (s *transferService) Upload(ctx context.Context, src string, opts UploadOptions) (UploadResult, error) {
	if opts.ID != "" && !wordkey.ValidIdentifier(opts.ID) {
		return UploadResult{}, fmt.Errorf("%w: %q", common.ErrInvalidIdentifier, opts.ID)
	}
	if _, err := os.Lstat(src); err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", common.ErrArchive, err)
	}

	cfg, err := s.client.Configuration(ctx)
	if err != nil {
		return UploadResult{}, fmt.Errorf("fetch relay configuration: %w", err)
	}
	limit := cfg.Transfer.MaxSizeBytes

	secret, err := s.newSecret()
	if err != nil {
		return UploadResult{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	archR, archW := io.Pipe()
	bodyR, bodyW := io.Pipe()
	frames := make(chan []byte, cryptox.QueueDepth)
	encDone := make(chan error, 1)

	var (
		summary                  archive.Summary
		sent                     int64
		resp                     common.CreateTransferResponse
		archErr, encErr, sendErr error
		upErr                    error
	)

	g.Go(func() error {
		summary, archErr = archive.Write(gctx, src, archW)
		archW.CloseWithError(archErr)
		return archErr
	})
	g.Go(func() error {
		encErr = cryptox.EncryptStream(gctx, archR, []byte(secret), frames)
		if encErr != nil {
			archR.CloseWithError(encErr)
		}
		encDone <- encErr
		return encErr
	})
	g.Go(func() error {
		sendErr = sendFrames(frames, bodyW, limit, &sent)
		if sendErr == nil {
			// Frames also stop when encryption fails; the body must not
			// end cleanly then.
			sendErr = <-encDone
		}
		bodyW.CloseWithError(sendErr)
		return sendErr
	})
	g.Go(func() error {
		resp, upErr = s.client.Upload(gctx, opts.ID, opaqueReader{bodyR})
		if upErr != nil {
			bodyR.CloseWithError(upErr)
		} else {
			bodyR.Close()
		}
		return upErr
	})

	err = g.Wait()
	if relayVerdict(upErr) {
		err = upErr
	} else if cause := firstCause(sendErr, encErr, archErr); cause != nil {
		err = cause
	}
	if err != nil {
		s.logger.Debug(ctx, "upload failed", "src", src, "sent", sent, "error", err)
		return UploadResult{}, err
	}

	s.logger.Debug(ctx, "upload committed", "id", resp.ID, "sent", sent, "entries", summary.Entries())
	return UploadResult{
		Key:         wordkey.TransferKey{ID: resp.ID, Secret: secret},
		ExpiresAt:   resp.ExpiresAt,
		DeleteToken: resp.DeleteToken,
		Summary:     summary,
		Sent:        sent,
	}, nil
}

// relayVerdict reports whether err is the relay's answer rather than a side
// effect of a local stage tearing the request down.
func relayVerdict(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, client.ErrUnavailable)
}

// firstCause returns the first error that is not a cancellation echo.
func firstCause(errs ...error) error {
	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.ErrClosedPipe) {
			return err
		}
	}
	return nil
}

// sendFrames copies encoded frames into w, failing early once the relay's
// advertised limit would be crossed. A limit of zero disables the check.
func sendFrames(frames <-chan []byte, w io.Writer, limit int64, sent *int64) error {
	for b := range frames {
		if limit > 0 && *sent+int64(len(b)) > limit {
			return &common.SizeLimitError{Limit: limit}
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
		*sent += int64(len(b))
	}
	return nil
}

// Download fetches the transfer named by key, authenticates and decrypts it
// and extracts the archive into dest. Nothing appears in dest unless the
// whole stream verified; existing entries are never replaced.
func (s *transferService) Download(ctx context.Context, key wordkey.TransferKey, dest string) (DownloadResult, error) {
	if !wordkey.ValidIdentifier(key.ID) {
		return DownloadResult{}, fmt.Errorf("%w: %q", common.ErrInvalidIdentifier, key.ID)
	}
	if key.Secret == "" {
		return DownloadResult{}, fmt.Errorf("%w: missing secret", common.ErrIntegrity)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return DownloadResult{}, err
	}
	if !info.IsDir() {
		return DownloadResult{}, fmt.Errorf("%s is not a directory", dest)
	}

	body, _, err := s.client.Download(ctx, key.ID)
	if err != nil {
		return DownloadResult{}, err
	}
	defer body.Close()

	staging := filepath.Join(dest, stagingPrefix+uuid.NewString())
	if err := os.Mkdir(staging, 0o700); err != nil {
		return DownloadResult{}, fmt.Errorf("create staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	counted := &countingReader{r: body}
	names, err := decryptInto(ctx, counted, staging, []byte(key.Secret))
	if err != nil {
		s.logger.Debug(ctx, "download failed", "id", key.ID, "received", counted.n, "error", err)
		return DownloadResult{}, err
	}

	if err := moveInto(staging, dest, names); err != nil {
		return DownloadResult{}, err
	}
	s.logger.Debug(ctx, "download extracted", "id", key.ID, "received", counted.n, "names", names)
	return DownloadResult{Names: names, Received: counted.n}, nil
}

func decryptInto(ctx context.Context, r io.Reader, dir string, secret []byte) ([]string, error) {
	g, gctx := errgroup.WithContext(ctx)
	pr, pw := io.Pipe()

	var (
		names  []string
		decErr error
	)
	g.Go(func() error {
		decErr = cryptox.Decrypt(gctx, r, pw, secret)
		pw.CloseWithError(decErr)
		return decErr
	})
	g.Go(func() error {
		var err error
		names, err = archive.Extract(gctx, pr, dir)
		if err == nil {
			// The final frame must still be authenticated.
			_, err = io.Copy(io.Discard, pr)
		}
		pr.CloseWithError(err)
		return err
	})

	err := g.Wait()
	if decErr != nil && !errors.Is(decErr, context.Canceled) {
		return nil, decErr
	}
	return names, err
}

func moveInto(staging, dest string, names []string) error {
	for _, n := range names {
		ok, err := filex.Exists(filepath.Join(dest, n))
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: %s already exists in %s", common.ErrConflict, n, dest)
		}
	}
	for _, n := range names {
		if err := os.Rename(filepath.Join(staging, n), filepath.Join(dest, n)); err != nil {
			return fmt.Errorf("move %s: %w", n, err)
		}
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
