package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/Moonlit/backend/internal/api/http"
	"github.com/GriffinCanCode/Moonlit/backend/internal/api/middleware"
	"github.com/GriffinCanCode/Moonlit/backend/internal/api/ws"
	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/settings"
	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/streaming"
	"github.com/GriffinCanCode/Moonlit/backend/internal/events"
	"github.com/GriffinCanCode/Moonlit/backend/internal/gamestream"
	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/Moonlit/backend/internal/input"
	"github.com/GriffinCanCode/Moonlit/backend/internal/shared/paths"
	"github.com/GriffinCanCode/Moonlit/backend/internal/transport"
)

// EventSettingsChanged is posted when the settings file is reloaded
const EventSettingsChanged = "settings.changed"

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	manager *streaming.Manager
	bus     *events.Bus
	store   *settings.Store
	watcher *settings.Watcher
	tracer  *tracing.Tracer
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics

	stop      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

// Option adjusts server construction
type Option func(*options)

type options struct {
	logger     *logging.Logger
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// WithLogger replaces the logger built from the config
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegistry registers metrics on reg instead of the default registry
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registerer = reg
		o.gatherer = reg
	}
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	o := options{
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing Moonlit server",
		zap.String("port", cfg.Server.Port),
		zap.String("transport", cfg.Transport.Driver),
		zap.String("settings", cfg.Stream.SettingsPath),
	)

	metrics := monitoring.NewMetricsWith(o.registerer)
	tracer := tracing.New("moonlit", logger.Component("tracing"))

	// Streaming settings
	cfg.Stream.SettingsPath = paths.SettingsFile(cfg.Stream.SettingsPath)
	initial, err := settings.Load(cfg.Stream.SettingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	store := settings.NewStore(initial)

	var watcher *settings.Watcher
	if cfg.Stream.WatchSettings {
		watcher, err = settings.NewWatcher(cfg.Stream.SettingsPath, store, logger.Component("settings"))
		if err != nil {
			logger.Warn("Settings file will not be watched", zap.Error(err))
		}
	}

	// Host control plane
	client := gamestream.NewClient(gamestream.Options{
		Port:      cfg.Host.Port,
		Timeout:   cfg.Host.Timeout,
		Retries:   cfg.Host.Retries,
		RPS:       float64(cfg.Host.RPS),
		TripAfter: uint32(cfg.Host.TripAfter),
	}, logger.Logger).WithMetrics(metrics)
	logger.Info("GameStream client ready", zap.String("unique_id", client.UniqueID()))
	resolver := gamestream.NewResolver(client, logger.Component("resolver"))

	// Transport and local devices
	conn, err := transport.New(cfg.Transport.Driver, cfg.Transport.HelperPath, logger.Logger)
	if err != nil {
		return nil, err
	}
	var pads streaming.InputDevices
	if cfg.Input.Gamepads >= 0 {
		pads = input.Static(cfg.Input.Gamepads)
	} else {
		pads = input.NewJoydev(cfg.Input.JoydevGlob, logger.Logger)
	}

	bus := events.NewBus(cfg.Stream.EventBuffer, logger.Logger).WithMetrics(metrics)
	if watcher != nil {
		watcher.OnReload(func(s *settings.Settings) {
			bus.Post(EventSettingsChanged, s)
		})
	}

	manager := streaming.NewManager(resolver, conn, store, logger.Component("streaming")).
		WithPlatform(transport.NewPlatform(logger.Logger)).
		WithInput(pads).
		WithNotifier(bus).
		WithMetrics(metrics).
		WithTracer(tracer).
		WithHostCallTimeout(cfg.Stream.HostCallTimeout)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.CORSOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(manager, client, store, cfg.Stream.SettingsPath, metrics, logger.Component("api"))
	handlers.Register(router)

	wsHandler := ws.NewHandler(bus, logger.Logger).WithMetrics(metrics)
	router.GET("/events", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{})))

	logger.Info("Server initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		router: router,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		manager: manager,
		bus:     bus,
		store:   store,
		watcher: watcher,
		tracer:  tracer,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
		stop:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Manager returns the session manager
func (s *Server) Manager() *streaming.Manager {
	return s.manager
}

// Run starts background workers and serves HTTP until Close is called.
// It returns nil at once when Close already ran.
func (s *Server) Run() error {
	go s.metrics.Run(s.stop)
	if s.watcher != nil {
		go s.watcher.Run(s.ctx)
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops accepting requests, ends any active session and releases
// background workers. Later calls return the first call's result.
func (s *Server) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.shutdown(ctx)
	})
	return s.closeErr
}

func (s *Server) shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	done := make(chan struct{})
	go func() {
		s.manager.Close()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Streaming session stopped")
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("session teardown: %w", ctx.Err()))
	}

	s.bus.Close()
	s.cancel()
	s.tracer.Close()
	close(s.stop)

	_ = s.logger.Sync()
	return errors.Join(errs...)
}
