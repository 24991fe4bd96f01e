package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dietTrackerAPI/handlers"
	"dietTrackerAPI/internal/config"
	"dietTrackerAPI/internal/store"
	"dietTrackerAPI/internal/streak"
	"dietTrackerAPI/middleware"
	"dietTrackerAPI/services"
)

type app struct {
	router      http.Handler
	rateLimiter *middleware.RateLimiter
}

// newApp wires services and handlers over backend and builds the router.
// verify is the bearer token check for protected routes.
func newApp(cfg *config.Config, backend store.Backend, verify middleware.TokenVerifier, reg *prometheus.Registry, logger *zap.Logger) (*app, error) {
	tracker := streak.NewTracker(backend,
		streak.WithLocation(cfg.StreakLocation),
		streak.WithMaxAttempts(cfg.StreakMaxAttempts),
		streak.WithLogger(logger.Named("streak")),
		streak.WithMetrics(streak.NewMetrics(reg)),
	)

	userService := services.NewUserService(backend, cfg.StreakLocation, logger.Named("users"))
	activityService := services.NewActivityService(backend, backend, tracker, cfg.StreakLocation, logger.Named("activity"))

	userHandler := handlers.NewUserHandler(userService, logger)
	activityHandler := handlers.NewActivityHandler(activityService, logger)
	healthHandler := handlers.NewHealthHandler(backend, logger)
	webhookHandler, err := handlers.NewWebhookHandler(userService, cfg.ClerkWebhookSecret, logger.Named("webhook"))
	if err != nil {
		return nil, err
	}

	monitor := middleware.NewMonitor(reg)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	auth := middleware.NewAuth(verify, logger.Named("auth"))

	r := mux.NewRouter()
	r.Use(rateLimiter.Middleware)
	r.Use(monitor.Middleware)

	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	r.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(metricsHandler))
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")
	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(auth.ClerkAuthMiddleware)

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/update-profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/delete-account", userHandler.DeleteAccount).Methods("DELETE")
	protected.HandleFunc("/user/streak", userHandler.GetStreak).Methods("GET")

	protected.HandleFunc("/logs", activityHandler.GetDay).Methods("GET")
	protected.HandleFunc("/logs/calendar", activityHandler.GetCalendar).Methods("GET")
	protected.HandleFunc("/logs/food", activityHandler.LogFood).Methods("POST")
	protected.HandleFunc("/logs/water", activityHandler.LogWater).Methods("POST")
	protected.HandleFunc("/logs/workout", activityHandler.CompleteWorkout).Methods("POST")
	protected.HandleFunc("/logs/quick-add", activityHandler.QuickAddFood).Methods("POST")

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	return &app{router: corsHandler(r), rateLimiter: rateLimiter}, nil
}

func runServe(ctx context.Context) error {
	if cfg.ClerkSecretKey == "" {
		return errors.New("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(cfg.ClerkSecretKey)
	logger.Info("clerk initialized")

	backend, err := store.Open(ctx, cfg, logger.Named("store"))
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer func() {
		logger.Info("closing store")
		backend.Close()
	}()

	if err := backend.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate %s store: %w", cfg.StoreDriver, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(cfg, backend, middleware.VerifyClerkToken, reg, logger)
	if err != nil {
		return err
	}
	go a.rateLimiter.Cleanup(ctx, time.Minute)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", server.Addr),
			zap.String("store", cfg.StoreDriver),
			zap.String("streak_timezone", cfg.StreakLocation.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server shutdown complete")
	return nil
}
