package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telezhkin/mediaforge/internal/api"
	"github.com/telezhkin/mediaforge/internal/archive"
	"github.com/telezhkin/mediaforge/internal/config"
	"github.com/telezhkin/mediaforge/internal/convert"
	"github.com/telezhkin/mediaforge/internal/registry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatal("config error", zap.Error(err))
		}
		logger.Info("no config file, using defaults", zap.String("path", *configPath))
		cfg = config.Default()
	}

	for _, dir := range []string{cfg.Storage.ArchiveDir, cfg.Storage.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal("failed to create directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	deps := convert.Deps{
		OCRLanguages: cfg.Convert.OCRLanguages,
		SofficePath:  cfg.Convert.SofficePath,
	}
	reg := registry.New(registry.Params{
		WorkDir:       cfg.Storage.WorkDir,
		ArchiveDir:    cfg.Storage.ArchiveDir,
		MaxConcurrent: cfg.Limits.MaxConcurrentJobs,
		ItemTimeout:   cfg.ItemTimeout(),
		Deps:          deps,
		Logger:        logger,
	})

	// Retention sweep: unclaimed archives and stale job records.
	archive.CleanOldArchives(cfg.Storage.ArchiveDir, cfg.Retention(), logger)
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			archive.CleanOldArchives(cfg.Storage.ArchiveDir, cfg.Retention(), logger)
			if n := reg.Evict(cfg.Retention()); n > 0 {
				logger.Info("evicted stale jobs", zap.Int("count", n))
			}
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), api.RequestLogger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadBytes()

	api.RegisterHandlers(r, &api.APIHandler{
		Registry:       reg,
		Log:            logger,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Deps:           deps,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("server starting", zap.Int("port", cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
