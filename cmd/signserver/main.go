package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ralt/signserver/internal/auth"
	"github.com/ralt/signserver/internal/backend"
	"github.com/ralt/signserver/internal/config"
	"github.com/ralt/signserver/internal/httpapi"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	log := logrus.StandardLogger()

	configPath := os.Getenv("SIGNSERVER_CONFIG")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := backend.Resolve(ctx, cfg, log)
	if err != nil {
		log.Fatal(err)
	}

	users, err := auth.OpenUserStore(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		log.Fatal(err)
	}
	defer users.Close()

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiry)

	server := httpapi.New(b, users, issuer, log, cfg.MaxUploadBytes)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server,
	}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
