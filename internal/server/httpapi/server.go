// Package httpapi is the relay's public HTTP surface: transfer upload,
// download, metadata and deletion, the limits announcement and metrics.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/common"
	"github.com/dmitrijs2005/gophxfer/internal/logging"
	"github.com/dmitrijs2005/gophxfer/internal/server/admission"
	"github.com/dmitrijs2005/gophxfer/internal/server/metrics"
	"github.com/dmitrijs2005/gophxfer/internal/server/models"
	"github.com/dmitrijs2005/gophxfer/internal/server/storage"
	"github.com/gorilla/mux"
)

const shutdownTimeout = 10 * time.Second

// Store is the part of storage.Engine the handlers use.
type Store interface {
	Create(ctx context.Context, id string) (*storage.Handle, error)
	Read(ctx context.Context, id string) (*storage.Reader, models.Transfer, error)
	Stat(ctx context.Context, id string) (models.Transfer, error)
	Delete(ctx context.Context, id string) error
	MaxSize() int64
	TTL() time.Duration
}

// Options configures a Server.
type Options struct {
	Address    string
	Store      Store
	Metrics    *metrics.Metrics
	Limiter    admission.Limiter
	TrustProxy bool
	// DeleteTokenSecret signs the delete tokens handed out on upload.
	DeleteTokenSecret []byte
	Logger            logging.Logger
	Now               func() time.Time
}

type Server struct {
	address     string
	store       Store
	metrics     *metrics.Metrics
	limiter     admission.Limiter
	trustProxy  bool
	tokenSecret []byte
	logger      logging.Logger
	now         func() time.Time
}

func NewServer(opts Options) *Server {
	s := &Server{
		address:     opts.Address,
		store:       opts.Store,
		metrics:     opts.Metrics,
		limiter:     opts.Limiter,
		trustProxy:  opts.TrustProxy,
		tokenSecret: opts.DeleteTokenSecret,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.logger = s.logger.With("module", "http_server")
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	if s.limiter == nil {
		s.limiter = admission.Unlimited{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Handler builds the relay router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.responseHeaders, s.accessLog)

	limited := admission.Middleware(admission.Options{
		Limiter:    s.limiter,
		TrustProxy: s.trustProxy,
		Logger:     s.logger,
		OnReject:   s.metrics.RateLimitedOrigin,
	})

	r.HandleFunc("/", s.Index()).Methods(http.MethodGet)
	r.HandleFunc(common.ConfigurationPath, s.Configuration()).Methods(http.MethodGet)
	r.Handle(common.TransferPath, limited(s.Upload())).Methods(http.MethodPost)
	r.Handle(common.TransferPath+"/{id}", limited(s.Upload())).Methods(http.MethodPut)
	r.HandleFunc(common.TransferPath+"/{id}", s.Download()).Methods(http.MethodGet)
	r.HandleFunc(common.TransferPath+"/{id}", s.Metadata()).Methods(http.MethodHead)
	r.HandleFunc(common.TransferPath+"/{id}", s.Delete()).Methods(http.MethodDelete)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	r.NotFoundHandler = s.responseHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	r.MethodNotAllowedHandler = s.responseHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))

	return r
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on l until ctx is done, then shuts down gracefully, letting
// running transfers finish for up to shutdownTimeout.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Warn(ctx, "HTTP shutdown incomplete", "error", err)
			_ = srv.Close()
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", l.Addr().String())

	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
