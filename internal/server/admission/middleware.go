package admission

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/logging"
	"github.com/dmitrijs2005/gophxfer/internal/netx"
)

// Options configures Middleware.
type Options struct {
	Limiter    Limiter
	TrustProxy bool
	Logger     logging.Logger
	// OnReject is called for every rate-limited request.
	OnReject func(origin string)
}

// Middleware rate-limits the wrapped handler per client origin. Rejected
// requests get 429 with a Retry-After header in whole seconds.
func Middleware(opts Options) func(http.Handler) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := netx.ClientIP(r, opts.TrustProxy)

			d, err := opts.Limiter.Allow(r.Context(), origin)
			if err != nil {
				log.Warn(r.Context(), "rate limit check failed", "origin", origin, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				if opts.OnReject != nil {
					opts.OnReject(origin)
				}
				log.Info(r.Context(), "request rate limited", "origin", origin, "retry_after", d.RetryAfter)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			if d.Remaining >= 0 {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
