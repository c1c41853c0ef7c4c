package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/service"
)

// DefaultWarningDays is the lookahead of /v1/deadlines/upcoming when no
// days parameter is given.
const DefaultWarningDays = 7

type Dependencies struct {
	Logger   *logrus.Logger
	Addr     string
	Workflow *service.Workflow

	// Monitor, when set, sweeps expired deadlines before requests under
	// /v1/requests are served.
	Monitor *service.DeadlineMonitor

	WarningDays    int
	MetricsEnabled bool

	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string
	// RateLimit is a per-IP limit such as "120-M"; empty disables it.
	RateLimit string
}

type Server struct {
	httpServer  *http.Server
	logger      *logrus.Logger
	mux         *http.ServeMux
	workflow    *service.Workflow
	validate    *validator.Validate
	warningDays int
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:      d.Logger,
		mux:         mux,
		workflow:    d.Workflow,
		validate:    validator.New(),
		warningDays: d.WarningDays,
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if s.warningDays <= 0 {
		s.warningDays = DefaultWarningDays
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /v1/requests", s.handleCreateRequest)
	mux.HandleFunc("GET /v1/requests/{id}", s.handleGetRequest)
	mux.HandleFunc("POST /v1/requests/{id}/submit", s.handleSubmit)
	mux.HandleFunc("POST /v1/requests/{id}/votes", s.handleCastVote)
	mux.HandleFunc("GET /v1/requests/{id}/votes", s.handleListVotes)
	mux.HandleFunc("GET /v1/requests/{id}/eligible-voters", s.handleEligibleVoters)
	mux.HandleFunc("GET /v1/requests/{id}/outcome", s.handleOutcome)
	mux.HandleFunc("POST /v1/requests/{id}/transitions", s.handleTransition)
	mux.HandleFunc("GET /v1/requests/{id}/audit", s.handleAudit)

	mux.HandleFunc("POST /v1/deadlines/apply", s.handleApplyDeadlines)
	mux.HandleFunc("GET /v1/deadlines/upcoming", s.handleUpcomingDeadlines)
	mux.HandleFunc("POST /v1/deadlines/warn", s.handleWarnDeadlines)

	if d.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	var handler http.Handler = mux
	if d.Monitor != nil {
		handler = deadlineSweepMiddleware(d.Monitor, handler)
	}
	if d.RateLimit != "" {
		limited, err := rateLimitMiddleware(d.RateLimit, handler)
		if err != nil {
			s.logger.WithError(err).Warn("invalid rate limit, serving without one")
		} else {
			handler = limited
		}
	}
	if len(d.CORSOrigins) > 0 {
		handler = corsMiddleware(d.CORSOrigins, handler)
	}
	handler = loggingMiddleware(s.logger, handler)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
