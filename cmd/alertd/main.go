package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/alertdebounce/internal/alert"
	"github.com/hamed0406/alertdebounce/internal/config"
	"github.com/hamed0406/alertdebounce/internal/httpapi"
	apimw "github.com/hamed0406/alertdebounce/internal/httpapi/middleware"
	"github.com/hamed0406/alertdebounce/internal/logging"
	"github.com/hamed0406/alertdebounce/internal/notify"
	"github.com/hamed0406/alertdebounce/internal/probe"
	"github.com/hamed0406/alertdebounce/internal/scheduler"
)

func main() {
	cfgPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New("alertd", cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	sink, err := notify.New(notify.Settings{
		SlackWebhookURL: cfg.SlackWebhookURL,
		WebhookURL:      cfg.WebhookURL,
		WebhookSecret:   cfg.WebhookSecret,
		Label:           cfg.Label,
	}, logger)
	if err != nil {
		logger.Fatal("notify_setup", zap.Error(err))
	}

	deb, err := alert.New(logger.Named("alert"), sink, alert.Options{
		Cooldown:     cfg.Cooldown,
		Label:        cfg.Label,
		GateRecovery: cfg.GateRecovery,
	})
	if err != nil {
		logger.Fatal("alert_setup", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checkers := probe.NewMultiChecker(
		&probe.RetryChecker{
			Inner:    probe.NewHTTPChecker(cfg.CheckTimeout),
			Attempts: cfg.RetryAttempts,
			Backoff:  cfg.RetryBackoff,
		},
		probe.NewDNSChecker(),
	)
	w := scheduler.NewWatcher(logger.Named("watcher"), deb, checkers, cfg.Targets,
		cfg.CheckInterval, cfg.CheckTimeout, cfg.MaxConcurrentChecks)
	w.ResetEvery = cfg.ResetEvery
	go w.Run(ctx)

	api := httpapi.NewServer(logger, deb)
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("api_listen",
		zap.String("addr", cfg.Addr),
		zap.Duration("cooldown", cfg.Cooldown),
		zap.String("label", cfg.Label),
		zap.Int("targets", len(cfg.Targets)),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api_listen_error", zap.Error(err))
	}
	logger.Info("api_stopped")
}
