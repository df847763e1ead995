package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/hris-sync/internal/config"
	appHTTP "github.com/cmlabs-hris/hris-sync/internal/handler/http"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/cron"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/database"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/sse"
	"github.com/cmlabs-hris/hris-sync/internal/repository/postgresql"
	collabService "github.com/cmlabs-hris/hris-sync/internal/service/collab"
	permissionService "github.com/cmlabs-hris/hris-sync/internal/service/permission"
	syncService "github.com/cmlabs-hris/hris-sync/internal/service/syncbatch"
	"github.com/go-chi/httplog/v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	logFormat := httplog.SchemaECS.Concise(cfg.App.Env == "development")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       cfg.App.SlogLevel(),
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "hris-sync-api"),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		logger.Error("Error connecting to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.DB.AutoMigrate {
		if err := postgresql.ApplySchema(ctx, db); err != nil {
			logger.Error("Failed to apply schema", "error", err)
			os.Exit(1)
		}
		logger.Info("Schema applied")
	}

	permissionRepo := postgresql.NewPermissionRepository(db)
	cellRepo := postgresql.NewCellRepository(db)
	conflictRepo := postgresql.NewConflictRepository(db)

	JWTService := jwt.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessExpirationTime)
	hub := sse.NewHub()

	permissionSvc := permissionService.NewPermissionService(permissionRepo)
	collabSvc := collabService.NewCollabService(
		conflictRepo,
		cellRepo,
		hub,
		postgresql.NewTxRunner(db),
		collabService.Config{ConflictTTL: cfg.Conflict.TTL},
	)
	syncSvc := syncService.NewSyncService(permissionSvc, cellRepo, collabSvc)

	permissionHandler := appHTTP.NewPermissionHandler(permissionSvc)
	syncHandler := appHTTP.NewSyncHandler(syncSvc)
	collabHandler := appHTTP.NewCollabHandler(collabSvc, JWTService)

	router := appHTTP.NewRouter(
		logger,
		cfg.App.AllowedOrigins,
		JWTService,
		permissionHandler,
		syncHandler,
		collabHandler,
	)

	scheduler := cron.NewScheduler(logger)
	scheduler.AddJob("purge_expired_conflicts", cfg.Conflict.PurgeInterval, collabSvc.PurgeExpired,
		cron.WithTimeout(time.Minute),
	)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Cancelled on shutdown so open SSE streams end.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Server running", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
