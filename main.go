package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lacuina/content-service/handlers"
	"github.com/lacuina/content-service/internal/app"
	"github.com/lacuina/content-service/internal/config"
	"github.com/lacuina/content-service/internal/inbox"
	"github.com/lacuina/content-service/internal/profiles"
	"github.com/lacuina/content-service/internal/sessions"
	"github.com/lacuina/content-service/pkg/logger"
	"github.com/lacuina/content-service/pkg/metrics"
	"github.com/lacuina/content-service/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)
	logger.Configure(cfg.Log.Options())
	logger.Infof("config loaded: store=%s mongo=%v redis=%v firebase=%v", cfg.Store.Backend, cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Firebase.ProjectID != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("startup: %v", err)
	}
	defer a.Close()
	// readiness reports the wait; serving starts regardless
	if err := a.Start(ctx, 0); err != nil {
		logger.Fatalf("watch site document: %v", err)
	}

	sessions.SetBlacklistClient(a.Redis)
	verifier, err := a.Verifier(ctx)
	if err != nil {
		logger.Fatalf("token verifier: %v", err)
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors(cfg.Server.CORSOrigins))

	notifier := a.Notifier()
	profilesSvc := profiles.NewService(a.Store)
	api := &handlers.API{
		Config:       handlers.NewConfigHandler(a.Sync),
		Backups:      handlers.NewBackupHandler(a.Backups),
		Inbox:        handlers.NewInboxHandler(inbox.NewMessages(a.Store, notifier), inbox.NewReservations(a.Store, a.Sync, notifier, cfg.Site.Location())),
		Profile:      handlers.NewProfileHandler(profilesSvc),
		Verifier:     verifier,
		SubmitLimits: []gin.HandlerFunc{submitLimiter(a, cfg.RateLimit)},
	}
	if idp := a.Identity(); idp != nil {
		sessionsSvc, err := a.Sessions(ctx)
		if err != nil {
			logger.Fatalf("sessions: %v", err)
		}
		api.Auth = handlers.NewAuthHandler(idp, verifier, sessionsSvc, profilesSvc)
	} else {
		logger.Warnf("auth handlers not registered because FIREBASE_API_KEY is not set")
	}
	api.Register(r)
	handlers.RegisterSwagger(r)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	// ready once the site document has been loaded from the store
	r.GET("/ready", func(c *gin.Context) {
		deps := map[string]bool{"siteConfig": false, "redis": a.Redis != nil || cfg.Redis.Host == ""}
		select {
		case <-a.Sync.Ready():
			deps["siteConfig"] = true
		default:
		}
		uptime := time.Since(startTime).String()
		if !deps["siteConfig"] || !deps["redis"] {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": uptime})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": uptime})
	})

	// Expose Prometheus metrics
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("Starting content service on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
}

// submitLimiter throttles the public forms per client, shared through
// Redis when it is available.
func submitLimiter(a *app.App, rl config.RateLimitConfig) gin.HandlerFunc {
	if a.Redis != nil {
		return middleware.RedisRateLimitMiddleware(a.Redis, "submit", rl.RPS, rl.Burst, rl.Window)
	}
	return middleware.RateLimitMiddleware("submit", rl.RPS, rl.Burst)
}

func cors(origins []string) gin.HandlerFunc {
	anyOrigin := len(origins) == 0 || slices.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case anyOrigin:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(origins, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Disposition")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
