package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/beaconops/emergency-dispatch/internal/api"
	"github.com/beaconops/emergency-dispatch/internal/audit"
	"github.com/beaconops/emergency-dispatch/internal/config"
	"github.com/beaconops/emergency-dispatch/internal/dispatch"
	"github.com/beaconops/emergency-dispatch/internal/feed"
	"github.com/beaconops/emergency-dispatch/internal/intake"
	"github.com/beaconops/emergency-dispatch/internal/logging"
	"github.com/beaconops/emergency-dispatch/internal/repository"
	"github.com/beaconops/emergency-dispatch/internal/sender"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	for _, p := range []string{cfg.DB.Path, cfg.Audit.Path} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				logging.Fatalf("Failed to create data directory %s: %v", dir, err)
			}
		}
	}

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	auditLog := audit.New(cfg.Audit.Path)

	dispatcher := dispatch.New(auditLog, cfg.Dispatch.Timeout)
	dispatcher.Register(sender.NewSMSSender())
	dispatcher.Register(sender.NewEmailSender())
	dispatcher.Register(sender.NewPushSender())
	dispatcher.Register(sender.NewAuthoritySender(cfg.Dispatch.EmergencyNumber))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Live feed of dispatch reports for websocket subscribers
	broadcaster := feed.NewBroadcaster()

	// Start intake manager (worker pool + optional kafka source)
	mgr := intake.NewManager(cfg, db, dispatcher, broadcaster)
	mgr.Start(ctx)

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(10)) // 10 req/s global limit

	handler := api.NewHandler(db, mgr, auditLog, broadcaster)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	mgr.Stop()
	broadcaster.Close() // Close all feed streams gracefully

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
