package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ovidijusr/shieldai/internal/ai"
	"github.com/ovidijusr/shieldai/internal/api/handlers"
	"github.com/ovidijusr/shieldai/internal/api/router"
	"github.com/ovidijusr/shieldai/internal/classifier"
	"github.com/ovidijusr/shieldai/internal/config"
	"github.com/ovidijusr/shieldai/internal/dockerx"
	"github.com/ovidijusr/shieldai/internal/fix"
	"github.com/ovidijusr/shieldai/internal/pkg/logger"
	"github.com/ovidijusr/shieldai/internal/rules"
	"github.com/ovidijusr/shieldai/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	log := logger.Global()

	cli, err := dockerx.NewClient()
	if err != nil {
		log.ErrorWithErr(err, "Failed to connect to the container engine")
		os.Exit(1)
	}

	collector := dockerx.NewCollector(cli, cfg.Docker.ComposePaths, cfg.Docker.AuditorContainer, log)
	lifecycle := dockerx.NewLifecycle(cli)
	synth := dockerx.NewSynthesizer(cli)
	engine := rules.NewEngine(classifier.New(), log)
	fixer := fix.NewEngine(lifecycle, synth, cfg.Fix.BackupDir, cfg.Fix.RestartWait, log)

	var analyzer services.Analyzer
	if cfg.AI.APIKey != "" {
		a, err := ai.NewAnalyzer(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout, log)
		if err != nil {
			log.ErrorWithErr(err, "Failed to initialize analyzer")
			os.Exit(1)
		}
		analyzer = a
	} else {
		log.Warn("No model provider API key configured, deep audits disabled")
	}

	svc := services.NewAuditService(collector, engine, analyzer, fixer, log)

	h := &router.Handlers{
		Health: handlers.NewHealthHandler(func() error {
			_, err := cli.Ping(context.Background())
			return err
		}),
		Audit: handlers.NewAuditHandler(svc, log),
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.New(log, h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.ErrorWithErr(err, "Server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.ErrorWithErr(err, "Graceful shutdown failed")
	}
}
