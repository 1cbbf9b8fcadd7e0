// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/confhub-io/confhub/internal/config"
	"github.com/confhub-io/confhub/internal/domain"
	"github.com/confhub-io/confhub/internal/events"
	eventspostgres "github.com/confhub-io/confhub/internal/events/postgres"
	"github.com/confhub-io/confhub/internal/identity"
	"github.com/confhub-io/confhub/internal/identity/jwt"
	identitypostgres "github.com/confhub-io/confhub/internal/identity/postgres"
	"github.com/confhub-io/confhub/internal/notifications"
	"github.com/confhub-io/confhub/internal/notifications/email"
	notificationspostgres "github.com/confhub-io/confhub/internal/notifications/postgres"
	"github.com/confhub-io/confhub/internal/pkg/ctxlog"
	"github.com/confhub-io/confhub/internal/pkg/httputil"
	"github.com/confhub-io/confhub/internal/pkg/metrics"
	"github.com/confhub-io/confhub/internal/pkg/postgres"
	"github.com/confhub-io/confhub/internal/users"
	userspostgres "github.com/confhub-io/confhub/internal/users/postgres"
	"github.com/confhub-io/confhub/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// App represents the application instance.
type App struct {
	config             *config.Config
	logger             *slog.Logger
	db                 *pgxpool.Pool
	server             *http.Server
	metricsServer      *http.Server
	metricsCancel      context.CancelFunc
	notificationWorker *notifications.Worker
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, notificationWorker, err := app.setupRouter(metricsCtx)
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.notificationWorker = notificationWorker

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Stop notification worker first
	if a.notificationWorker != nil {
		a.notificationWorker.Stop()
	}

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordPoolStats(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordPoolStats(a.db)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) collectQueueMetrics(ctx context.Context, repo notifications.Repository) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := repo.GetQueueStats(ctx)
			if err != nil {
				slog.Error("failed to get queue stats", "error", err)
				continue
			}
			notifications.RecordQueueStats(stats)
		case <-ctx.Done():
			return
		}
	}
}

// cleanupExpiredTokens periodically removes refresh tokens past their
// expiry.
func (a *App) cleanupExpiredTokens(ctx context.Context, repo *identitypostgres.Repository) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deleted, err := repo.DeleteExpiredRefreshTokens(ctx)
			if err != nil {
				slog.Error("failed to delete expired refresh tokens", "error", err)
				continue
			}
			if deleted > 0 {
				slog.Info("expired refresh tokens deleted", "count", deleted)
			}
		case <-ctx.Done():
			return
		}
	}
}

// cleanupNotificationQueue requeues deliveries stuck in processing
// after a worker crash and drops sent rows past the retention window.
func (a *App) cleanupNotificationQueue(ctx context.Context, repo *notificationspostgres.Repository) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			released, err := repo.ReleaseStaleNotifications(ctx, 15*time.Minute)
			if err != nil {
				slog.Error("failed to release stale notifications", "error", err)
			} else if released > 0 {
				slog.Warn("stale notifications released", "count", released)
			}

			purged, err := repo.PurgeSentNotifications(ctx, 30*24*time.Hour)
			if err != nil {
				slog.Error("failed to purge sent notifications", "error", err)
			} else if purged > 0 {
				slog.Info("sent notifications purged", "count", purged)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// NotificationWorker returns the notification worker instance.
// Used in tests to access worker state. Returns nil if notifications disabled.
func (a *App) NotificationWorker() *notifications.Worker {
	return a.notificationWorker
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, *notifications.Worker, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>ConfHub API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`))
	})

	usersRepo := userspostgres.NewRepository(a.db)
	eventsRepo := eventspostgres.NewRepository(a.db)
	tokensRepo := identitypostgres.NewRepository(a.db)
	notificationsRepo := notificationspostgres.NewRepository(a.db)

	if err := a.ensureAdmin(ctx, usersRepo); err != nil {
		return nil, nil, err
	}

	// Setup notifications first (needed for identity hook)
	var (
		userNotifier       users.Notifier
		eventNotifier      events.Notifier
		userCreatedHook    identity.UserCreatedHandler
		notificationWorker *notifications.Worker
	)

	slog.Info("notifications configured",
		"enabled", a.config.Notifications.Enabled,
		"email_enabled", a.config.Notifications.Email.Enabled,
	)

	if a.config.Notifications.Enabled {
		emailSender, err := email.NewSender(email.Config{
			Enabled:      a.config.Notifications.Email.Enabled,
			SMTPHost:     a.config.Notifications.Email.SMTPHost,
			SMTPPort:     a.config.Notifications.Email.SMTPPort,
			SMTPUser:     a.config.Notifications.Email.SMTPUser,
			SMTPPassword: a.config.Notifications.Email.SMTPPassword,
			FromAddress:  a.config.Notifications.Email.FromAddress,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create email sender: %w", err)
		}

		if !a.config.Notifications.Email.Enabled {
			slog.Warn("email sender is disabled: queued mail will be skipped at delivery")
		}

		renderer, err := notifications.NewRenderer()
		if err != nil {
			return nil, nil, fmt.Errorf("create notification renderer: %w", err)
		}

		workerConfig := notifications.WorkerConfig{
			BatchSize:         a.config.Notifications.Worker.BatchSize,
			PollInterval:      a.config.Notifications.Worker.PollInterval,
			MaxAttempts:       a.config.Notifications.Retry.MaxAttempts,
			InitialBackoff:    a.config.Notifications.Retry.InitialBackoff,
			MaxBackoff:        a.config.Notifications.Retry.MaxBackoff,
			BackoffMultiplier: a.config.Notifications.Retry.BackoffMultiplier,
			NumWorkers:        a.config.Notifications.Worker.NumWorkers,
		}

		notificationWorker = notifications.NewWorker(workerConfig, notificationsRepo, emailSender, renderer)
		notificationWorker.Start(ctx)

		// Start queue metrics collection and queue housekeeping
		go a.collectQueueMetrics(ctx, notificationsRepo)
		go a.cleanupNotificationQueue(ctx, notificationsRepo)

		notifier := notifications.NewNotifier(notificationsRepo, usersRepo, a.config.Notifications.BaseURL)
		userNotifier = notifier
		eventNotifier = notifier
		userCreatedHook = notifier
	}
	notificationsHandler := notifications.NewHandler(notificationsRepo)

	go a.cleanupExpiredTokens(ctx, tokensRepo)

	// Report speaker assignment resolves users through the shared user
	// store. Absent users surface as a missing speaker.
	speakers := events.SpeakerDirectoryFunc(func(ctx context.Context, id int64) (*domain.User, error) {
		user, err := usersRepo.GetUserByID(ctx, id)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				return nil, events.ErrSpeakerNotFound
			}
			return nil, err
		}
		return user, nil
	})

	eventsService := events.NewService(eventsRepo, speakers, eventNotifier)
	eventsHandler := events.NewHandler(eventsService)

	usersService := users.NewService(usersRepo, eventsService, userNotifier)
	usersHandler := users.NewHandler(usersService)

	// Setup identity with notifications hook
	store := identityStore{userStore: usersRepo, tokenStore: tokensRepo}
	jwtAuth := jwt.NewAuthenticator(jwt.Config{
		Secret:               a.config.JWT.SecretKey,
		Issuer:               a.config.JWT.Issuer,
		AccessTokenDuration:  a.config.JWT.AccessTokenDuration,
		RefreshTokenDuration: a.config.JWT.RefreshTokenDuration,
	}, store)
	slog.Info("authentication configured", "type", jwtAuth.Type(), "issuer", a.config.JWT.Issuer)
	identityService := identity.NewService(store, jwtAuth, userCreatedHook, a.config.Bcrypt.Cost)
	identityHandler := identity.NewHandler(identityService, identity.CookieSettings{
		Secure:               a.config.Cookie.Secure,
		Domain:               a.config.Cookie.Domain,
		AccessTokenDuration:  a.config.JWT.AccessTokenDuration,
		RefreshTokenDuration: a.config.JWT.RefreshTokenDuration,
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Credential endpoints, rate limited per client IP
		r.Group(func(r chi.Router) {
			if a.config.RateLimit.Enabled {
				limiter := httputil.NewRateLimiter(rate.Limit(a.config.RateLimit.LoginRPS), a.config.RateLimit.LoginBurst)
				r.Use(limiter.Middleware)
			}
			identityHandler.RegisterRoutes(r)
		})

		eventsHandler.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(jwtAuth))
			r.Use(httputil.CSRFMiddleware)

			usersHandler.RegisterProfileRoutes(r)
			usersHandler.RegisterRegistrationRoutes(r)
			identityHandler.RegisterProtectedRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireRole(domain.RoleOrganizer))
				eventsHandler.RegisterOrganizerRoutes(r)
				eventsHandler.RegisterReportRoutes(r)
				usersHandler.RegisterParticipantRoutes(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireRole(domain.RoleAdmin))
				usersHandler.RegisterAdminRoutes(r)
				notificationsHandler.RegisterAdminRoutes(r)
			})
		})
	})

	return r, notificationWorker, nil
}

// ensureAdmin seeds the administrator account named in the config.
// An existing account with the same email is left untouched.
func (a *App) ensureAdmin(ctx context.Context, repo *userspostgres.Repository) error {
	cfg := a.config.Admin
	if cfg.Email == "" || cfg.Password == "" {
		return nil
	}

	_, err := repo.GetUserByEmail(ctx, cfg.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, users.ErrUserNotFound) {
		return fmt.Errorf("check admin account: %w", err)
	}

	cost := a.config.Bcrypt.Cost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), cost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &domain.User{
		Email:    cfg.Email,
		Name:     cfg.Name,
		Surname:  cfg.Surname,
		Password: string(hash),
		Role:     domain.RoleAdmin,
	}
	if err := repo.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}

	slog.Info("admin account created", "email", cfg.Email)
	return nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.Commit,
		"build_date": version.BuildDate,
	})
}

type (
	userStore  = userspostgres.Repository
	tokenStore = identitypostgres.Repository
)

// identityStore assembles the identity repository from the shared user
// store and the refresh token store.
type identityStore struct {
	*userStore
	*tokenStore
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
