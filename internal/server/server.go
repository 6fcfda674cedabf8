package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mattmezza/alertdesk/internal/history"
	"github.com/mattmezza/alertdesk/internal/notifier"
	"github.com/mattmezza/alertdesk/internal/store"
)

// API routes.
const (
	PathList     = "/api/alertInstance/list"
	PathDelete   = "/api/alertInstance/delete"
	PathEnable   = "/api/alertInstance/enable"
	PathSave     = "/api/alertInstance"
	PathSendTest = "/api/alertInstance/sendTest"
	PathHistory  = "/api/alertInstance/history"
	PathHealth   = "/healthz"
	PathMetrics  = "/metrics"
)

type Options struct {
	Store     store.Store
	History   *history.DeliveryBuffer
	Templates notifier.Templates
	Notify    notifier.Options
	// TestRateLimit is the sustained number of test sends per second.
	TestRateLimit float64
	TestBurst     int
	Logger        *zap.Logger
	Registry      *prometheus.Registry
}

// Server serves the alert instance REST API.
type Server struct {
	store     store.Store
	history   *history.DeliveryBuffer
	templates notifier.Templates
	notify    notifier.Options
	limiter   *rate.Limiter
	logger    *zap.Logger
	registry  *prometheus.Registry
	metrics   *metrics
	router    *mux.Router
	now       func() time.Time
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.History == nil {
		opts.History = history.NewDeliveryBuffer(0)
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.TestRateLimit <= 0 {
		opts.TestRateLimit = 1
	}
	if opts.TestBurst <= 0 {
		opts.TestBurst = 1
	}
	opts.Notify.Logger = opts.Logger.Named("notifier")

	s := &Server{
		store:     opts.Store,
		history:   opts.History,
		templates: opts.Templates,
		notify:    opts.Notify,
		limiter:   rate.NewLimiter(rate.Limit(opts.TestRateLimit), opts.TestBurst),
		logger:    opts.Logger,
		registry:  opts.Registry,
		metrics:   newMetrics(opts.Registry),
		now:       time.Now,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestID, s.accessLog, s.recoverer)

	r.HandleFunc(PathList, s.handleList).Methods(http.MethodGet)
	r.HandleFunc(PathDelete, s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc(PathEnable, s.handleEnable).Methods(http.MethodPut)
	r.HandleFunc(PathSave, s.handleSave).Methods(http.MethodPut)
	r.HandleFunc(PathSendTest, s.handleSendTest).Methods(http.MethodPost)
	r.HandleFunc(PathHistory, s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc(PathHealth, s.handleHealth).Methods(http.MethodGet)
	r.Handle(PathMetrics, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.fail(w, http.StatusNotFound, "not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.fail(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type ListenOptions struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, lo ListenOptions) error {
	srv := &http.Server{
		Addr:         lo.Addr,
		Handler:      s,
		ReadTimeout:  lo.ReadTimeout,
		WriteTimeout: lo.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("alertdesk API listening", zap.String("addr", lo.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serve http")
	case <-ctx.Done():
	}

	s.logger.Info("shutting down alertdesk API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), lo.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}
	return nil
}
