package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/climate-core/internal/alert"
	"github.com/nerrad567/climate-core/internal/audit"
	"github.com/nerrad567/climate-core/internal/history"
	"github.com/nerrad567/climate-core/internal/infrastructure/config"
	"github.com/nerrad567/climate-core/internal/infrastructure/database"
	"github.com/nerrad567/climate-core/internal/infrastructure/logging"
	"github.com/nerrad567/climate-core/internal/monitor"
	"github.com/nerrad567/climate-core/internal/query"
	"github.com/nerrad567/climate-core/internal/settings"
	"github.com/nerrad567/climate-core/internal/unit"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by optional components reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Units      *unit.Manager
	Query      *query.Facade
	Limits     *settings.Store
	Recipients *alert.RecipientStore
	History    *history.Store

	// Optional.
	Audit   *audit.Store
	Monitor *monitor.Monitor
	DB      *database.DB
	MQTT    HealthChecker
	Hub     *Hub

	Version string
}

// Server is the HTTP API server for Climate Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	units      *unit.Manager
	query      *query.Facade
	limits     *settings.Store
	recipients *alert.RecipientStore
	history    *history.Store
	audit      *audit.Store
	monitor    *monitor.Monitor
	db         *database.DB
	mqtt       HealthChecker
	version    string
	startTime  time.Time

	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Units == nil || deps.Query == nil {
		return nil, fmt.Errorf("unit manager and query facade are required")
	}
	if deps.Limits == nil || deps.Recipients == nil || deps.History == nil {
		return nil, fmt.Errorf("settings, recipient and history stores are required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		units:      deps.Units,
		query:      deps.Query,
		limits:     deps.Limits,
		recipients: deps.Recipients,
		history:    deps.History,
		audit:      deps.Audit,
		monitor:    deps.Monitor,
		db:         deps.DB,
		mqtt:       deps.MQTT,
		version:    deps.Version,
		startTime:  time.Now(),
	}
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}
	return s, nil
}

// Hub returns the WebSocket hub, for publishing alert events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine until
// Close is called.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
		// Streaming handlers clear the write deadline per connection.
		BaseContext: func(net.Listener) context.Context { return srvCtx },
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}

	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", ln.Addr().String(), "cert", s.cfg.TLS.CertFile)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It cancels live feeds, then waits up to 10 seconds for in-flight
// requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	<-s.done
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
