package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/driftwood/driftwood/internal/api"
	"github.com/driftwood/driftwood/internal/category"
	"github.com/driftwood/driftwood/internal/config"
	"github.com/driftwood/driftwood/internal/files"
	"github.com/driftwood/driftwood/internal/health"
	"github.com/driftwood/driftwood/internal/logger"
	"github.com/driftwood/driftwood/internal/scheduler"
	"github.com/driftwood/driftwood/internal/scheduler/tasks"
	"github.com/driftwood/driftwood/internal/startup"
	"github.com/driftwood/driftwood/internal/watcher"
	"github.com/driftwood/driftwood/internal/websocket"
	"github.com/driftwood/driftwood/web"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	initConfig := flag.Bool("init-config", false, "Write a default config.yaml and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("driftwood %s", config.Version)
		if config.Commit != "" {
			fmt.Printf(" (%s)", config.Commit)
		}
		fmt.Println()
		return
	}

	if *initConfig {
		path := *configPath
		if path == "" {
			path = "config.yaml"
		}
		if err := config.WriteDefault(path); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote default config to %s\n", path)
		return
	}

	// A .env in the working directory feeds viper's env lookup. Optional.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:           cfg.Logging.Level,
		Format:          cfg.Logging.Format,
		Path:            cfg.Logging.Path,
		MaxSizeMB:       cfg.Logging.MaxSizeMB,
		MaxBackups:      cfg.Logging.MaxBackups,
		MaxAgeDays:      cfg.Logging.MaxAgeDays,
		Compress:        cfg.Logging.Compress,
		EnableStreaming: true,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("root", cfg.Storage.Root).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting driftwood")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := startup.WaitForRoot(ctx, cfg.Storage.Root, startup.DefaultRetryConfig(), log.Logger); err != nil {
		log.Fatal().Err(err).Msg("storage root not available")
	}

	actualPort, err := config.FindAvailablePort(cfg.Server.Port, 10)
	if err != nil {
		log.Fatal().Err(err).Int("configuredPort", cfg.Server.Port).Msg("failed to find available port")
	}
	if actualPort != cfg.Server.Port {
		log.Warn().
			Int("configuredPort", cfg.Server.Port).
			Int("actualPort", actualPort).
			Msg("configured port in use, using alternative port")
		cfg.Server.Port = actualPort
	}

	hub := websocket.NewHub()
	go hub.Run()

	// Stream log entries to connected clients now that the hub exists.
	log.SetBroadcastHub(hub)

	classifier := category.New(cfg.Storage)
	filesSvc := files.NewService(cfg.Storage, classifier, log.Logger)
	filesSvc.SetBroadcaster(hub)

	healthSvc := health.NewService(cfg.Health, cfg.Storage.Root, log.Logger)
	healthSvc.SetBroadcaster(hub)

	var watcherSvc *watcher.Service
	if cfg.Watcher.Enabled {
		watcherSvc, err = watcher.New(cfg.Watcher, cfg.Storage.Root, hub, log.Logger)
		if err != nil {
			log.Warn().Err(err).Msg("failed to create filesystem watcher, live refresh disabled")
		} else if err := watcherSvc.Start(); err != nil {
			log.Warn().Err(err).Msg("failed to start filesystem watcher, live refresh disabled")
			watcherSvc = nil
		}
	}

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	if err := tasks.RegisterPartialSweepTask(sched, filesSvc, cfg.Scheduler, cfg.Storage, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("failed to register partial sweep task")
	}
	if err := tasks.RegisterStorageHealthTask(sched, healthSvc, cfg.Health, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("failed to register storage health task")
	}
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	deps := api.Deps{
		Files:     filesSvc,
		Health:    healthSvc,
		Hub:       hub,
		Scheduler: sched,
		Logs:      log,
	}
	if distFS, err := web.DistFS(); err == nil {
		deps.Frontend = distFS
	} else {
		log.Warn().Err(err).Msg("embedded frontend unavailable")
	}

	server := api.New(cfg, log.Logger, deps)

	go func() {
		if err := server.Start(); err != nil {
			log.Info().Err(err).Msg("HTTP server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown failed")
	}
	if watcherSvc != nil {
		if err := watcherSvc.Stop(); err != nil {
			log.Error().Err(err).Msg("watcher shutdown failed")
		}
	}

	log.Info().Msg("shutdown complete")
}
