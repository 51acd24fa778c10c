package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/common"
	"github.com/dmitrijs2005/gophxfer/internal/server/admission"
	"github.com/dmitrijs2005/gophxfer/internal/server/auth"
	"github.com/dmitrijs2005/gophxfer/internal/server/models"
	"github.com/dmitrijs2005/gophxfer/internal/wordkey"
	"github.com/gorilla/mux"
)

const banner = common.ServerName + " relay\n\nEnd-to-end encrypted file transfers. This server only ever sees ciphertext.\n"

func (s *Server) Index() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, banner)
	}
}

func (s *Server) Configuration() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, common.ServerConfiguration{
			Transfer: common.TransferConfiguration{
				ExpireAfterMs: s.store.TTL().Milliseconds(),
				MaxSizeBytes:  s.store.MaxSize(),
			},
		})
	}
}

// pathID returns the {id} route variable, or "" on routes without one.
func pathID(r *http.Request) (string, error) {
	id, ok := mux.Vars(r)["id"]
	if !ok {
		return "", nil
	}
	if !wordkey.ValidIdentifier(id) {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidIdentifier, id)
	}
	return id, nil
}

// Upload stores a request body as a new transfer. POST lets the relay pick
// the identifier, PUT /transfer/{id} claims the given one.
func (s *Server) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := pathID(r)
		if err != nil {
			s.metrics.Uploads.WithLabelValues("invalid").Inc()
			s.writeError(ctx, w, err)
			return
		}

		if err := admission.CheckContentLength(r, s.store.MaxSize()); err != nil {
			s.metrics.Uploads.WithLabelValues("too_large").Inc()
			s.writeError(ctx, w, err)
			return
		}

		body, err := admission.GateContent(r.Body)
		if err != nil {
			if errors.Is(err, common.ErrRejected) {
				s.metrics.Uploads.WithLabelValues("rejected").Inc()
				s.logger.Warn(ctx, "upload is not an encrypted stream", "error", err)
				s.writeError(ctx, w, err)
				return
			}
			s.metrics.Uploads.WithLabelValues("aborted").Inc()
			s.logger.Info(ctx, "upload body failed", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		h, err := s.store.Create(ctx, id)
		if err != nil {
			s.metrics.Uploads.WithLabelValues(outcome(err)).Inc()
			s.writeError(ctx, w, err)
			return
		}

		if _, err := io.Copy(h, body); err != nil {
			h.Abort(ctx)
			var sizeErr *common.SizeLimitError
			if errors.As(err, &sizeErr) {
				s.metrics.Uploads.WithLabelValues("too_large").Inc()
				s.logger.Info(ctx, "upload exceeded size limit", "id", h.ID(), "limit", sizeErr.Limit)
				s.writeError(ctx, w, err)
				return
			}
			s.metrics.Uploads.WithLabelValues("aborted").Inc()
			s.logger.Info(ctx, "upload aborted", "id", h.ID(), "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		t, err := h.Commit(ctx)
		if err != nil {
			s.metrics.Uploads.WithLabelValues("error").Inc()
			s.writeError(ctx, w, err)
			return
		}

		// Without a token the transfer simply lives until it expires.
		token, err := auth.GenerateToken(t.ID, s.tokenSecret, t.ExpiresAt)
		if err != nil {
			s.logger.Warn(ctx, "transfer committed without delete token", "id", t.ID, "error", err)
			token = ""
		}

		s.metrics.Uploads.WithLabelValues("committed").Inc()
		s.metrics.UploadBytes.Add(float64(t.Size))

		w.Header().Set(common.ExpiresAtHeaderName, t.ExpiresAt.UTC().Format(time.RFC3339))
		writeJSON(w, http.StatusCreated, common.CreateTransferResponse{
			ID:          t.ID,
			ExpiresAt:   t.ExpiresAt.UTC(),
			DeleteToken: token,
		})
	}
}

func outcome(err error) string {
	switch statusFor(err) {
	case http.StatusConflict:
		return "conflict"
	case http.StatusBadRequest:
		return "invalid"
	default:
		return "error"
	}
}

func (s *Server) transferHeaders(w http.ResponseWriter, t models.Transfer) {
	h := w.Header()
	h.Set("Content-Length", strconv.FormatInt(t.Size, 10))
	h.Set("Cache-Control", fmt.Sprintf("max-age=%d, must-revalidate", int64(t.Remaining(s.now()).Seconds())))
	h.Set(common.ExpiresAtHeaderName, t.ExpiresAt.UTC().Format(time.RFC3339))
}

// Download streams the stored ciphertext.
func (s *Server) Download() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := pathID(r)
		if err != nil {
			s.writeError(ctx, w, err)
			return
		}

		rd, t, err := s.store.Read(ctx, id)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				s.metrics.Downloads.WithLabelValues("not_found").Inc()
			} else {
				s.metrics.Downloads.WithLabelValues("error").Inc()
			}
			s.writeError(ctx, w, err)
			return
		}
		defer rd.Close()

		w.Header().Set("Content-Type", "application/octet-stream")
		s.transferHeaders(w, t)
		w.WriteHeader(http.StatusOK)

		n, err := io.Copy(w, rd)
		s.metrics.DownloadBytes.Add(float64(n))
		if err != nil {
			s.metrics.Downloads.WithLabelValues("aborted").Inc()
			s.logger.Info(ctx, "download interrupted", "id", id, "sent", n, "error", err)
			return
		}
		s.metrics.Downloads.WithLabelValues("served").Inc()
	}
}

// Metadata answers HEAD with the download headers and no body.
func (s *Server) Metadata() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := pathID(r)
		if err != nil {
			w.WriteHeader(statusFor(err))
			return
		}

		t, err := s.store.Stat(ctx, id)
		if err != nil {
			w.WriteHeader(statusFor(err))
			return
		}

		s.transferHeaders(w, t)
		w.WriteHeader(http.StatusOK)
	}
}

// Delete removes a transfer on presentation of its delete token.
func (s *Server) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := pathID(r)
		if err != nil {
			s.writeError(ctx, w, err)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			s.writeError(ctx, w, fmt.Errorf("%w: missing bearer token", common.ErrInvalidToken))
			return
		}
		if err := auth.Authorize(token, s.tokenSecret, id, s.now); err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			s.writeError(ctx, w, err)
			return
		}

		if err := s.store.Delete(ctx, id); err != nil {
			s.writeError(ctx, w, err)
			return
		}

		s.metrics.Deletes.Inc()
		s.logger.Info(ctx, "transfer deleted by uploader", "id", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
