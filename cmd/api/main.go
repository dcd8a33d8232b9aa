package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/config"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/engine"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/server"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main starts the wallet API and the metadata cache service on one listener,
// shutting down gracefully on SIGINT/SIGTERM.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
	eng, err := engine.New(startCtx, cfg, logger)
	startCancel()
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize engine")
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.WithError(err).Warn("engine close")
		}
	}()

	h := &server.Handlers{
		Wallet:   eng,
		Jupiter:  eng.Jupiter(),
		Metadata: eng.MetadataStore(),
		OnChain:  eng.OnChain(),
		DevMode:  cfg.DevMode,
		Logger:   logger,
	}
	// Keep Flags a nil interface when Redis is down.
	if fs := eng.Flags(); fs != nil {
		h.Flags = fs
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("http shutdown")
		}
	}()

	logger.WithFields(logrus.Fields{
		"addr":   cfg.APIAddr,
		"signer": eng.Signer() != nil,
	}).Info("api server starting")
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("api server failed")
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer waitCancel()
	if err := srv.WaitClosed(waitCtx); err != nil {
		logger.WithError(err).Warn("server did not close in time")
	}
}
