package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/common"
	"github.com/dmitrijs2005/gophxfer/internal/netx"
	"github.com/sethvargo/go-retry"
)

const (
	defaultRetries = 3
	defaultBackoff = 200 * time.Millisecond
)

type HTTPClient struct {
	base    *url.URL
	http    *http.Client
	retries uint64
	backoff time.Duration
}

// Option tweaks an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.http = c }
}

// WithRetries sets how often metadata calls are retried and the first
// backoff step.
func WithRetries(n uint64, backoff time.Duration) Option {
	return func(h *HTTPClient) {
		h.retries = n
		h.backoff = backoff
	}
}

// NewHTTPClient returns a client for the relay at server, e.g.
// "https://relay.example.org/".
func NewHTTPClient(server string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url %q: %w", server, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid relay url %q: scheme must be http or https", server)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &HTTPClient{
		base:    u,
		http:    &http.Client{},
		retries: defaultRetries,
		backoff: defaultBackoff,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// URL returns the relay base URL.
func (c *HTTPClient) URL() string { return c.base.String() }

func (c *HTTPClient) endpoint(elem ...string) string {
	for i, e := range elem {
		elem[i] = url.PathEscape(e)
	}
	return c.base.JoinPath(elem...).String()
}

func (c *HTTPClient) transferURL(id string) string {
	if id == "" {
		return c.endpoint(strings.TrimPrefix(common.TransferPath, "/"))
	}
	return c.endpoint(strings.TrimPrefix(common.TransferPath, "/"), id)
}

func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

// withRetry runs f with exponential backoff. Only failures that may go away
// on their own are retried: network errors and 5xx responses.
func (c *HTTPClient) withRetry(ctx context.Context, f func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := f(ctx)
		if err != nil && transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func transient(err error) bool {
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var se *netx.StatusError
	return errors.As(err, &se) && se.Code >= 500
}

// Configuration fetches the relay limits.
func (c *HTTPClient) Configuration(ctx context.Context) (common.ServerConfiguration, error) {
	var cfg common.ServerConfiguration
	err := c.withRetry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(strings.TrimPrefix(common.ConfigurationPath, "/")), nil)
		if err != nil {
			return err
		}
		resp, err := c.do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return statusError(resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
			return fmt.Errorf("decode configuration: %w", err)
		}
		return nil
	})
	return cfg, err
}

// Upload is not retried: body is a one-shot stream.
func (c *HTTPClient) Upload(ctx context.Context, id string, body io.Reader) (common.CreateTransferResponse, error) {
	var out common.CreateTransferResponse

	method := http.MethodPost
	if id != "" {
		method = http.MethodPut
	}
	req, err := http.NewRequestWithContext(ctx, method, c.transferURL(id), body)
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return out, statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode upload response: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) Download(ctx context.Context, id string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.transferURL(id), nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, 0, statusError(resp)
	}
	return resp.Body, resp.ContentLength, nil
}

func (c *HTTPClient) Metadata(ctx context.Context, id string) (Metadata, error) {
	var md Metadata
	err := c.withRetry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.transferURL(id), nil)
		if err != nil {
			return err
		}
		resp, err := c.do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return statusError(resp)
		}
		md.Size = resp.ContentLength
		if v := resp.Header.Get(common.ExpiresAtHeaderName); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				md.ExpiresAt = t
			}
		}
		return nil
	})
	return md, err
}

func (c *HTTPClient) Delete(ctx context.Context, id, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.transferURL(id), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return statusError(resp)
	}
	return nil
}

// statusError maps a relay response status to a domain error.
func statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return common.ErrNotFound
	case http.StatusConflict:
		return common.ErrConflict
	case http.StatusBadRequest:
		se := netx.NewStatusError(resp)
		if strings.Contains(se.Body, common.ErrInvalidIdentifier.Error()) {
			return common.ErrInvalidIdentifier
		}
		return se
	case http.StatusUnauthorized:
		return common.ErrInvalidToken
	case http.StatusUnprocessableEntity:
		return common.ErrRejected
	case http.StatusRequestEntityTooLarge:
		var body common.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
		return &common.SizeLimitError{Limit: body.MaxSizeBytes}
	case http.StatusTooManyRequests:
		e := &common.RateLimitError{}
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			e.RetryAfter = time.Duration(s) * time.Second
		}
		return e
	default:
		return netx.NewStatusError(resp)
	}
}
