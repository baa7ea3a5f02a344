package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"careerforge/internal/api"
	"careerforge/internal/auth"
	"careerforge/internal/config"
	"careerforge/internal/database"
	"careerforge/internal/guard"
	"careerforge/internal/hub"
	"careerforge/internal/logger"
	"careerforge/internal/quiz"
	"careerforge/internal/router"
	"careerforge/internal/session"
	"careerforge/internal/websocket"
)

// rateLimitCleanupInterval is how often idle rate limiter entries are pruned
const rateLimitCleanupInterval = time.Minute

// Application coordinates all system components
// ARCHITECTURAL DISCOVERY: Clean dependency injection pattern with proper initialization order
type Application struct {
	config      *config.Config
	log         *logger.Logger
	dbManager   *database.Manager
	redis       *redis.Client
	guard       guard.Guard
	memGuard    *guard.MemoryGuard
	sessions    *session.Store
	quizzes     *quiz.Machine
	registry    *websocket.Registry
	bus         hub.Bus
	messageHub  *hub.Hub
	eventRouter *router.Router
	apiServer   *api.Server
	httpServer  *http.Server

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	serveErr chan error
}

// NewApplication creates a new application instance with all components initialized
// FUNCTIONAL DISCOVERY: Component initialization follows strict dependency order:
// Database → Redis → Guard → Session/Quiz → Registry → Hub → Router → API → HTTP
func NewApplication(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}

	app := &Application{config: cfg, log: log.With("component", "app")}

	// STEP 1: Initialize database manager (foundation layer)
	dbManager, err := database.NewManager(ctx, cfg.DatabaseConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}
	app.dbManager = dbManager

	// STEP 2: Connect to Redis only when a backend needs it
	if cfg.UsesRedis() {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			app.closeStores()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
	}

	// STEP 3: Concurrency guard shared by the session log and the quiz machine
	switch cfg.Guard.Backend {
	case config.BackendRedis:
		app.guard = guard.NewRedisGuard(app.redis, cfg.Guard.TTL, log)
	default:
		app.memGuard = guard.NewMemoryGuard(cfg.Guard.TTL, log)
		app.guard = app.memGuard
	}

	// STEP 4: Domain components
	catalog := quiz.DefaultCatalog()
	if cfg.Quiz.ProfilesPath != "" {
		if catalog, err = quiz.LoadCatalog(cfg.Quiz.ProfilesPath); err != nil {
			app.closeStores()
			return nil, fmt.Errorf("failed to load career profiles: %w", err)
		}
	}
	app.sessions = session.NewStore(dbManager, app.guard, log)
	app.quizzes = quiz.NewMachine(dbManager, app.guard, catalog, log)

	verifier, err := auth.NewJWTVerifier(auth.Config{
		Secret: []byte(cfg.Auth.Secret),
		Issuer: cfg.Auth.Issuer,
		Leeway: cfg.Auth.Leeway,
	})
	if err != nil {
		app.closeStores()
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	// STEP 5: Realtime gateway: registry, relay bus, hub, router
	app.registry = websocket.NewRegistry()
	if cfg.Relay.Backend == config.BackendRedis {
		app.bus = hub.NewRedisBus(app.redis, cfg.Relay.Channel, log)
	} else {
		app.bus = hub.NewLocalBus()
	}
	app.messageHub = hub.NewHub(app.registry, app.bus, log)

	routerOpts := router.Options{MessagesPerMinute: cfg.WebSocket.MessagesPerMinute}
	if cfg.WebSocket.EnforceRoomOwnership {
		routerOpts.Authorizer = session.NewRoomAuthorizer(dbManager)
	}
	app.eventRouter = router.NewRouter(app.registry, app.messageHub, routerOpts, log)

	wsHandler := websocket.NewHandler(verifier, app.registry, app.eventRouter, websocket.HandlerConfig{
		PingInterval:    cfg.WebSocket.PingInterval,
		PongWait:        cfg.WebSocket.PongWait,
		MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
	}, log)

	// STEP 6: HTTP API
	app.apiServer = api.NewServer(api.Dependencies{
		Verifier: verifier,
		Sessions: app.sessions,
		Quizzes:  app.quizzes,
		Guard:    app.guard,
		Notifier: app.messageHub,
		Database: dbManager,
		Registry: app.registry,
		Hub:      app.messageHub,
	}, api.Options{
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
		RetryMaxElapsed: cfg.HTTP.RetryMaxElapsed,
	}, log)

	// STEP 7: Setup HTTP server with both API and WebSocket endpoints
	mux := http.NewServeMux()
	mux.Handle("/api/", app.apiServer)
	mux.Handle("/health", app.apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	app.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return app, nil
}

// Handler exposes the composed HTTP handler
func (app *Application) Handler() http.Handler {
	return app.httpServer.Handler
}

// Start launches background workers and begins serving
// ARCHITECTURAL DISCOVERY: Hub starts first so no broadcast can be published before delivery
// is running; the listener is bound synchronously so a port conflict fails Start
func (app *Application) Start(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.cancel != nil {
		return errors.New("application already started")
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	// STEP 1: Start message hub (background message processing)
	if err := app.messageHub.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to start message hub: %w", err)
	}

	// STEP 2: Background maintenance
	if app.memGuard != nil {
		app.memGuard.StartSweeper(app.config.Guard.SweepInterval)
	}
	app.eventRouter.StartCleanup(runCtx, rateLimitCleanupInterval)

	// STEP 3: Bind and serve
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		_ = app.messageHub.Stop()
		cancel()
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	app.listener = listener
	app.cancel = cancel
	app.serveErr = make(chan error, 1)

	go func() {
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.serveErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(app.serveErr)
	}()

	app.log.Info("careerforge started", "addr", listener.Addr().String(),
		"guard", app.config.Guard.Backend, "relay", app.config.Relay.Backend)
	return nil
}

// Err reports a fatal serve error; the channel closes when serving stops
func (app *Application) Err() <-chan error {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.serveErr
}

// Stop gracefully shuts down the application
// FUNCTIONAL DISCOVERY: Reverse dependency order: HTTP → Hub → Bus → Guard → Redis → Database
func (app *Application) Stop(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	app.log.Info("shutting down careerforge")
	var errs []error

	// STEP 1: Stop accepting new connections
	if app.listener != nil {
		if err := app.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		app.listener = nil
	}

	// STEP 2: Stop message processing and background workers
	if app.cancel != nil {
		if err := app.messageHub.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
		}
		app.cancel()
		app.cancel = nil
	}
	if err := app.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("bus shutdown: %w", err))
	}

	// STEP 3: Release stores
	if err := app.closeStores(); err != nil {
		errs = append(errs, err)
	}

	app.log.Info("careerforge shutdown complete")
	return errors.Join(errs...)
}

func (app *Application) closeStores() error {
	var errs []error
	if app.memGuard != nil {
		if err := app.memGuard.Close(); err != nil {
			errs = append(errs, fmt.Errorf("guard shutdown: %w", err))
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis shutdown: %w", err))
		}
		app.redis = nil
	}
	if app.dbManager != nil {
		if err := app.dbManager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Addr returns the bound address once started, otherwise the configured one
func (app *Application) Addr() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}
