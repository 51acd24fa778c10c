package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/common"
	"github.com/dmitrijs2005/gophxfer/internal/netx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testID = "alpha-bravo-charlie-delta"

func newTestClient(t *testing.T, h http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewHTTPClient(srv.URL, WithHTTPClient(srv.Client()), WithRetries(2, time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestNewHTTPClient(t *testing.T) {
	c, err := NewHTTPClient("https://relay.example.org/base")
	require.NoError(t, err)
	assert.Equal(t, "https://relay.example.org/base/", c.URL())
	assert.Equal(t, "https://relay.example.org/base/transfer/"+testID, c.transferURL(testID))
	assert.Equal(t, "https://relay.example.org/base/transfer", c.transferURL(""))

	_, err = NewHTTPClient("ftp://relay.example.org")
	assert.Error(t, err)
	_, err = NewHTTPClient("://bad")
	assert.Error(t, err)
}

func TestConfiguration_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/configuration", r.URL.Path)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(common.ServerConfiguration{
			Transfer: common.TransferConfiguration{ExpireAfterMs: 60_000, MaxSizeBytes: 1 << 20},
		})
	}))

	cfg, err := c.Configuration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, time.Minute, cfg.ExpireAfter())
	assert.Equal(t, int64(1<<20), cfg.Transfer.MaxSizeBytes)
}

func TestConfiguration_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.Configuration(context.Background())
	var se *netx.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMetadata_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.Metadata(context.Background(), testID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMetadata(t *testing.T) {
	exp := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Length", "1234")
		w.Header().Set(common.ExpiresAtHeaderName, exp.Format(time.RFC3339))
	}))

	md, err := c.Metadata(context.Background(), testID)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), md.Size)
	assert.True(t, exp.Equal(md.ExpiresAt))
}

func TestUpload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		assert.Equal(t, "ciphertext", string(b))
		id := strings.TrimPrefix(r.URL.Path, "/transfer/")
		if r.Method == http.MethodPost {
			assert.Equal(t, "/transfer", r.URL.Path)
			id = "echo-foxtrot-golf-hotel"
		} else {
			assert.Equal(t, http.MethodPut, r.Method)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(common.CreateTransferResponse{ID: id, DeleteToken: "tok"})
	}))

	out, err := c.Upload(context.Background(), "", strings.NewReader("ciphertext"))
	require.NoError(t, err)
	assert.Equal(t, "echo-foxtrot-golf-hotel", out.ID)

	out, err = c.Upload(context.Background(), testID, strings.NewReader("ciphertext"))
	require.NoError(t, err)
	assert.Equal(t, testID, out.ID)
	assert.Equal(t, "tok", out.DeleteToken)
}

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
		body   string
		check  func(t *testing.T, err error)
	}{
		{name: "conflict", status: http.StatusConflict, check: func(t *testing.T, err error) {
			assert.ErrorIs(t, err, common.ErrConflict)
		}},
		{name: "bad id", status: http.StatusBadRequest, body: `{"error":"invalid identifier: \"x\""}`, check: func(t *testing.T, err error) {
			assert.ErrorIs(t, err, common.ErrInvalidIdentifier)
		}},
		{name: "bad request", status: http.StatusBadRequest, check: func(t *testing.T, err error) {
			var se *netx.StatusError
			assert.ErrorAs(t, err, &se)
		}},
		{name: "rejected", status: http.StatusUnprocessableEntity, check: func(t *testing.T, err error) {
			assert.ErrorIs(t, err, common.ErrRejected)
		}},
		{name: "too large", status: http.StatusRequestEntityTooLarge, body: `{"error":"x","max_size_bytes":4096}`, check: func(t *testing.T, err error) {
			var se *common.SizeLimitError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, int64(4096), se.Limit)
			assert.ErrorIs(t, err, common.ErrSizeLimitExceeded)
		}},
		{name: "rate limited", status: http.StatusTooManyRequests, header: map[string]string{"Retry-After": "30"}, check: func(t *testing.T, err error) {
			var re *common.RateLimitError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, 30*time.Second, re.RetryAfter)
		}},
		{name: "teapot", status: http.StatusTeapot, body: "short and stout", check: func(t *testing.T, err error) {
			var se *netx.StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "short and stout", se.Body)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			_, err := c.Upload(context.Background(), "", strings.NewReader("x"))
			tt.check(t, err)
		})
	}
}

func TestDownload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, testID) {
			_, _ = io.WriteString(w, "stream")
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	rc, n, err := c.Download(context.Background(), testID)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "stream", string(b))
	assert.Equal(t, int64(6), n)

	_, _, err = c.Download(context.Background(), "echo-foxtrot-golf-hotel")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDelete(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.Delete(context.Background(), testID, "good"))
	assert.ErrorIs(t, c.Delete(context.Background(), testID, "bad"), common.ErrInvalidToken)
}

func TestUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewHTTPClient(url, WithRetries(1, time.Millisecond))
	require.NoError(t, err)

	_, err = c.Configuration(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Metadata(ctx, testID)
	assert.True(t, errors.Is(err, context.Canceled), err)
}
