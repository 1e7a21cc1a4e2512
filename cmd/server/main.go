package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/sync/errgroup"

	"chat-widget/internal/db"
	"chat-widget/internal/handlers"
	"chat-widget/internal/logger"
	"chat-widget/internal/realtime"
)

type serverConfig struct {
	Port         string  `env:"PORT" envDefault:"8000"`
	DataDir      string  `env:"DATA_DIR"`
	DemoBotID    string  `env:"DEMO_BOT_ID"`
	DailyLimit   int     `env:"DAILY_MESSAGE_LIMIT" envDefault:"0"`
	RatePerSec   float64 `env:"MESSAGES_PER_SECOND" envDefault:"0"`
	RateBurst    int     `env:"MESSAGES_BURST" envDefault:"5"`
	Verbose      bool    `env:"VERBOSE"`
	JSONLogs     bool    `env:"LOG_JSON"`
	ShutdownWait int     `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"5"`
}

func main() {
	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		logger.Error("Invalid environment: " + err.Error())
		os.Exit(1)
	}
	if cfg.JSONLogs {
		logger.SetJSONOutput(os.Stderr)
	}
	logger.SetVerbose(cfg.Verbose)

	if cfg.DataDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
		cfg.DataDir = filepath.Join(cwd, "data")
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	database := db.New(cfg.DataDir)
	if err := database.Load(); err != nil {
		logger.WarnCF("server", "Failed to load database", map[string]interface{}{"error": err.Error()})
	}
	if cfg.DemoBotID != "" {
		if err := seedDemoBot(database, cfg); err != nil {
			logger.WarnCF("server", "Failed to seed demo bot", map[string]interface{}{"error": err.Error()})
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub()
	handler := handlers.New(database, hub, handlers.Limits{
		Daily:     cfg.DailyLimit,
		PerSecond: cfg.RatePerSec,
		Burst:     cfg.RateBurst,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.InfoCF("server", "Server starting", map[string]interface{}{
			"port":     cfg.Port,
			"data_dir": cfg.DataDir,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownWait)*time.Second)
		defer cancel()
		logger.Info("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped: " + err.Error())
		os.Exit(1)
	}
}

// seedDemoBot registers an active bot that answers through the built-in echo webhook.
func seedDemoBot(database *db.Database, cfg serverConfig) error {
	if len(database.FindBots(cfg.DemoBotID, false)) > 0 {
		return nil
	}
	return database.PutBot(db.BotConfiguration{
		"bot_id":       cfg.DemoBotID,
		"is_active":    true,
		"name":         "Echo",
		"company_name": "Demo",
		"webhook_url":  "http://localhost:" + cfg.Port + "/webhook/echo",
		"welcome_text": "Hi there! I repeat whatever you send me.",
	})
}
