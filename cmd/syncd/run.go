package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/httplog/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"

	agentconflict "github.com/cmlabs-hris/hris-sync/internal/agent/conflict"
	"github.com/cmlabs-hris/hris-sync/internal/agent/connectivity"
	"github.com/cmlabs-hris/hris-sync/internal/agent/notice"
	agentoffline "github.com/cmlabs-hris/hris-sync/internal/agent/offline"
	agentpermission "github.com/cmlabs-hris/hris-sync/internal/agent/permission"
	"github.com/cmlabs-hris/hris-sync/internal/agent/queue"
	"github.com/cmlabs-hris/hris-sync/internal/agent/syncer"
	"github.com/cmlabs-hris/hris-sync/internal/agent/upstream"
	"github.com/cmlabs-hris/hris-sync/internal/config"
	"github.com/cmlabs-hris/hris-sync/internal/handler/localhttp"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/cron"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/sse"
)

// uiTopic is the hub key of everything streamed to the admin UI.
const uiTopic = "ui"

func run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	cfg, err := config.LoadAgent()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logFormat := httplog.SchemaECS.Concise(true)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       cfg.SlogLevel(),
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(slog.String("app", "syncd"))
	slog.SetDefault(logger)

	actions, err := queue.NewRedisQueue(ctx, &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Redis.QueueKey)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer actions.Close()

	client, err := upstream.New(upstream.Config{
		BaseURL: cfg.API.URL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	hub := sse.NewHub()
	notices := notice.NewPublisher(hub, uiTopic, logger)

	// Start offline until the first heartbeat answers.
	store := connectivity.NewStore(false)
	prober := connectivity.NewProber(client.HeartbeatURL(), &http.Client{Timeout: cfg.API.ProbeTimeout}, store, logger)

	resolver := agentpermission.NewResolver(client, agentpermission.Config{
		FetchTimeout: cfg.API.Timeout,
		Logger:       logger,
	})
	defer resolver.Close()
	unsubscribeResolver := store.Subscribe(func(online bool) {
		if online {
			resolver.RetryFailed()
		}
	})
	defer unsubscribeResolver()

	batchSyncer := syncer.New(actions, client, syncer.Config{
		BatchSize: cfg.Monitor.BatchSize,
		Logger:    logger,
	})
	monitor := agentoffline.NewMonitor(store, actions, batchSyncer, notices, agentoffline.Config{
		PollInterval: cfg.Monitor.PollInterval,
		RecoveredTTL: cfg.Monitor.RecoveredTTL,
		Logger:       logger,
	})
	conflicts := agentconflict.NewConflictNotifier(client, hub, notices, agentconflict.NotifierConfig{
		Topic:  uiTopic,
		Logger: logger,
	})

	handler := localhttp.NewHandler(monitor, actions, resolver, conflicts, localhttp.NewEventStream(hub, uiTopic))
	server := &http.Server{
		Addr:              cfg.Local.Addr,
		Handler:           localhttp.NewRouter(logger, cfg.Local.AllowedOrigins, handler),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	scheduler := cron.NewScheduler(logger)
	scheduler.AddJob("connectivity_probe", cfg.API.ProbeInterval, prober.Probe,
		cron.WithTimeout(cfg.API.ProbeTimeout),
	)
	scheduler.Start()

	var wg conc.WaitGroup
	serverErr := make(chan error, 1)

	wg.Go(func() {
		if err := monitor.Run(ctx); err != nil {
			logger.Error("Offline monitor stopped", "error", err)
		}
	})
	wg.Go(func() {
		// Conflicts need the API; the notifier retries until it is reachable.
		_ = conflicts.Run(ctx)
	})
	wg.Go(func() {
		logger.Info("Local API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	})

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case runErr = <-serverErr:
		logger.Error("Local API failed", "error", runErr)
	}

	cancel()
	scheduler.Stop()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Local API shutdown error", "error", err)
	}

	wg.Wait()
	return runErr
}
