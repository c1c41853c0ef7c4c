package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	limitstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/service"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"from":   r.RemoteAddr,
			"status": rec.status,
			"dur":    time.Since(start).String(),
		}).Info("http request")
	})
}

// deadlineSweepMiddleware auto-approves overdue requests before anything
// under /v1/requests is read or written, so callers never see a stage that
// should already have been approved.
func deadlineSweepMiddleware(m *service.DeadlineMonitor, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/requests") {
			// Errors are logged by the monitor; the request proceeds.
			_, _ = m.Sweep(r.Context())
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware admits browser calls from the listed origins.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", ActorHeader},
	}).Handler(next)
}

// rateLimitMiddleware limits each client IP to rate, in limiter's
// "<count>-<period>" notation, e.g. "120-M".
func rateLimitMiddleware(rate string, next http.Handler) (http.Handler, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	l := limiter.New(memory.NewStore(), r)
	return limitstdlib.NewMiddleware(l).Handler(next), nil
}
