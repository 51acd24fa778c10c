package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/common"
	"github.com/dmitrijs2005/gophxfer/internal/filex"
	"github.com/dmitrijs2005/gophxfer/internal/logging"
	"github.com/dmitrijs2005/gophxfer/internal/server/models"
	"github.com/dmitrijs2005/gophxfer/internal/wordkey"
	"github.com/google/uuid"
)

const maxIDAttempts = 8

type state uint8

const (
	statePending state = iota
	stateAvailable
)

type record struct {
	models.Transfer
	state   state
	readers int
	removed bool
}

// Options configures an Engine.
type Options struct {
	// DataDir holds the staging area (and the fs backends, if used).
	DataDir string
	MaxSize int64
	TTL     time.Duration
	// BurnAfterRead deletes a transfer once one reader has streamed it to
	// the end.
	BurnAfterRead bool

	Blobs  BlobStore
	Index  RecordIndex
	Logger logging.Logger

	Now   func() time.Time
	NewID func() (string, error)
}

// Stats is a point-in-time view of the available transfers.
type Stats struct {
	Transfers int
	Bytes     int64
	Pending   int
}

// Engine is the relay's transfer table.
type Engine struct {
	opts    Options
	staging string
	log     logging.Logger

	mu      sync.Mutex
	records map[string]*record
}

// New builds an Engine. Call Restore before serving traffic.
func New(opts Options) (*Engine, error) {
	if opts.Blobs == nil || opts.Index == nil {
		return nil, errors.New("storage: blob store and record index are required")
	}
	if opts.MaxSize <= 0 {
		return nil, errors.New("storage: max size must be positive")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("storage: ttl must be positive")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = wordkey.NewIdentifier
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	staging, err := filex.EnsureDir(filepath.Join(opts.DataDir, stagingDir))
	if err != nil {
		return nil, err
	}

	return &Engine{
		opts:    opts,
		staging: staging,
		log:     opts.Logger.With("module", "storage"),
		records: make(map[string]*record),
	}, nil
}

func (e *Engine) MaxSize() int64     { return e.opts.MaxSize }
func (e *Engine) TTL() time.Duration { return e.opts.TTL }

// Create reserves id for a new upload. An empty id asks the engine to pick
// a fresh one. The returned handle must be committed or aborted.
func (e *Engine) Create(ctx context.Context, id string) (*Handle, error) {
	rec, err := e.reserve(id)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(e.staging, uuid.NewString())
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		e.release(rec.ID)
		return nil, fmt.Errorf("create staging file: %w", err)
	}

	e.log.Debug(ctx, "upload started", "id", rec.ID)
	return &Handle{e: e, rec: rec, f: f, path: path}, nil
}

func (e *Engine) reserve(id string) (*record, error) {
	now := e.opts.Now()

	if id != "" {
		if !wordkey.ValidIdentifier(id) {
			return nil, fmt.Errorf("%w: %q", common.ErrInvalidIdentifier, id)
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.records[id]; ok {
			return nil, fmt.Errorf("%w: %s", common.ErrConflict, id)
		}
		rec := &record{Transfer: models.Transfer{ID: id, CreatedAt: now}}
		e.records[id] = rec
		return rec, nil
	}

	for i := 0; i < maxIDAttempts; i++ {
		candidate, err := e.opts.NewID()
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		if _, ok := e.records[candidate]; !ok {
			rec := &record{Transfer: models.Transfer{ID: candidate, CreatedAt: now}}
			e.records[candidate] = rec
			e.mu.Unlock()
			return rec, nil
		}
		e.mu.Unlock()
	}
	return nil, fmt.Errorf("%w: no free identifier after %d attempts", common.ErrConflict, maxIDAttempts)
}

// release drops a pending reservation.
func (e *Engine) release(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rec, ok := e.records[id]; ok && rec.state == statePending {
		delete(e.records, id)
	}
}

// visible returns the record for id if readers may see it at now.
// Caller holds e.mu.
func (e *Engine) visible(id string, now time.Time) (*record, bool) {
	rec, ok := e.records[id]
	if !ok || rec.state != stateAvailable || rec.removed || rec.Expired(now) {
		return nil, false
	}
	return rec, true
}

// Stat returns the metadata of an available, unexpired transfer.
func (e *Engine) Stat(ctx context.Context, id string) (models.Transfer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.visible(id, e.opts.Now())
	if !ok {
		return models.Transfer{}, common.ErrNotFound
	}
	return rec.Transfer, nil
}

// Read opens an available, unexpired transfer for streaming. The deadline is
// checked here on every call; a stream that started before expiry runs to
// completion.
func (e *Engine) Read(ctx context.Context, id string) (*Reader, models.Transfer, error) {
	e.mu.Lock()
	rec, ok := e.visible(id, e.opts.Now())
	if !ok {
		e.mu.Unlock()
		return nil, models.Transfer{}, common.ErrNotFound
	}
	rec.readers++
	t := rec.Transfer
	e.mu.Unlock()

	rc, err := e.opts.Blobs.Open(ctx, id)
	if err != nil {
		e.unpin(ctx, rec, false)
		return nil, models.Transfer{}, err
	}
	return &Reader{rc: rc, e: e, rec: rec, size: t.Size}, t, nil
}

// unpin drops one reader reference and purges the transfer if it was the
// last reference to a removed record.
func (e *Engine) unpin(ctx context.Context, rec *record, consumed bool) {
	e.mu.Lock()
	rec.readers--
	if consumed && e.opts.BurnAfterRead && !rec.removed {
		rec.removed = true
	}
	purge := rec.removed && rec.readers == 0
	if purge {
		if cur, ok := e.records[rec.ID]; ok && cur == rec {
			delete(e.records, rec.ID)
		}
	}
	e.mu.Unlock()

	if purge {
		if err := e.purge(ctx, rec.ID); err != nil {
			e.log.Error(ctx, "failed to remove transfer", "id", rec.ID, "error", err)
		}
	}
}

// Delete removes a transfer. It is idempotent: unknown, pending and already
// removed ids succeed. If readers are streaming the transfer, it disappears
// for new readers at once and its content is removed when the last reader
// closes.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	rec, ok := e.records[id]
	if !ok || rec.state != stateAvailable || rec.removed {
		e.mu.Unlock()
		return nil
	}
	rec.removed = true
	purge := rec.readers == 0
	if purge {
		delete(e.records, id)
	}
	e.mu.Unlock()

	if !purge {
		e.log.Debug(ctx, "transfer removal deferred to last reader", "id", id)
		return nil
	}
	return e.purge(ctx, id)
}

func (e *Engine) purge(ctx context.Context, id string) error {
	var errs []error
	if err := e.opts.Index.Delete(ctx, id); err != nil {
		errs = append(errs, fmt.Errorf("index: %w", err))
	}
	if err := e.opts.Blobs.Remove(ctx, id); err != nil {
		errs = append(errs, fmt.Errorf("blob: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	e.log.Debug(ctx, "transfer removed", "id", id)
	return nil
}

// Expired lists available transfers whose deadline is at or before now.
func (e *Engine) Expired(now time.Time) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var ids []string
	for id, rec := range e.records {
		if rec.state == stateAvailable && !rec.removed && rec.Expired(now) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Stats reports the number and total size of available transfers.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	var s Stats
	for _, rec := range e.records {
		switch {
		case rec.state == statePending:
			s.Pending++
		case !rec.removed:
			s.Transfers++
			s.Bytes += rec.Size
		}
	}
	return s
}

// Restore rebuilds the table from the record index, removes transfers that
// expired while the relay was down, deletes blobs that have no record and
// discards staging files left by interrupted uploads.
func (e *Engine) Restore(ctx context.Context) error {
	if err := os.RemoveAll(e.staging); err != nil {
		return fmt.Errorf("wipe staging: %w", err)
	}
	if _, err := filex.EnsureDir(e.staging); err != nil {
		return err
	}

	saved, err := e.opts.Index.List(ctx)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}

	now := e.opts.Now()
	var restored, expired int
	for _, t := range saved {
		if t.Expired(now) {
			if err := e.purge(ctx, t.ID); err != nil {
				e.log.Warn(ctx, "failed to remove expired transfer", "id", t.ID, "error", err)
			}
			expired++
			continue
		}
		e.mu.Lock()
		e.records[t.ID] = &record{Transfer: *t, state: stateAvailable}
		e.mu.Unlock()
		restored++
	}

	blobs, err := e.opts.Blobs.List(ctx)
	if err != nil {
		return fmt.Errorf("list blobs: %w", err)
	}
	var orphans int
	for _, id := range blobs {
		e.mu.Lock()
		_, known := e.records[id]
		e.mu.Unlock()
		if known {
			continue
		}
		if err := e.opts.Blobs.Remove(ctx, id); err != nil {
			e.log.Warn(ctx, "failed to remove orphan blob", "id", id, "error", err)
			continue
		}
		orphans++
	}

	e.log.Info(ctx, "storage restored", "transfers", restored, "expired", expired, "orphans", orphans)
	return nil
}

// Handle is an in-progress upload. It is not safe for concurrent use.
type Handle struct {
	e    *Engine
	rec  *record
	f    *os.File
	path string
	size int64
	done bool
}

func (h *Handle) ID() string  { return h.rec.ID }
func (h *Handle) Size() int64 { return h.size }

// Write appends to the staged content. Crossing the size limit aborts the
// upload and returns a *common.SizeLimitError.
func (h *Handle) Write(p []byte) (int, error) {
	if h.done {
		return 0, os.ErrClosed
	}
	if h.size+int64(len(p)) > h.e.opts.MaxSize {
		h.Abort(context.Background())
		return 0, &common.SizeLimitError{Limit: h.e.opts.MaxSize}
	}
	n, err := h.f.Write(p)
	h.size += int64(n)
	if err != nil {
		h.Abort(context.Background())
		return n, err
	}
	return n, nil
}

// Commit makes the upload visible. The transfer expires TTL after commit.
func (h *Handle) Commit(ctx context.Context) (models.Transfer, error) {
	if h.done {
		return models.Transfer{}, os.ErrClosed
	}
	e := h.e

	if err := h.f.Close(); err != nil {
		h.Abort(ctx)
		return models.Transfer{}, fmt.Errorf("close staging file: %w", err)
	}
	if err := e.opts.Blobs.Promote(ctx, h.rec.ID, h.path, h.size); err != nil {
		h.Abort(ctx)
		return models.Transfer{}, err
	}

	t := models.Transfer{
		ID:        h.rec.ID,
		Size:      h.size,
		CreatedAt: h.rec.CreatedAt,
		ExpiresAt: e.opts.Now().Add(e.opts.TTL),
	}
	if err := e.opts.Index.Save(ctx, &t); err != nil {
		if rerr := e.opts.Blobs.Remove(ctx, t.ID); rerr != nil {
			e.log.Warn(ctx, "failed to remove blob of failed commit", "id", t.ID, "error", rerr)
		}
		h.Abort(ctx)
		return models.Transfer{}, fmt.Errorf("save record: %w", err)
	}

	e.mu.Lock()
	h.rec.Transfer = t
	h.rec.state = stateAvailable
	e.mu.Unlock()

	h.done = true
	_ = filex.RemoveIfExists(h.path)

	e.log.Info(ctx, "transfer committed", "id", t.ID, "size", t.Size, "expires_at", t.ExpiresAt)
	return t, nil
}

// Abort discards the staged content and frees the identifier. It is safe to
// call more than once and after Commit, where it does nothing.
func (h *Handle) Abort(ctx context.Context) {
	if h.done {
		return
	}
	h.done = true
	_ = h.f.Close()
	if err := filex.RemoveIfExists(h.path); err != nil {
		h.e.log.Warn(ctx, "failed to remove staging file", "path", h.path, "error", err)
	}
	h.e.release(h.rec.ID)
	h.e.log.Debug(ctx, "upload aborted", "id", h.rec.ID, "received", h.size)
}

// Reader streams a committed transfer and holds a pin on it until Close.
type Reader struct {
	rc     io.ReadCloser
	e      *Engine
	rec    *record
	size   int64
	read   int64
	closed bool
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	r.read += int64(n)
	return n, err
}

// Size is the total length of the stream.
func (r *Reader) Size() int64 { return r.size }

func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.rc.Close()
	r.e.unpin(context.Background(), r.rec, r.read >= r.size)
	return err
}
