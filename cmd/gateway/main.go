// Command gateway runs the storefront API gateway.
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

	"github.com/joho/godotenv"

	"github.com/storefronthq/gateway/internal/backend"
	"github.com/storefronthq/gateway/internal/config"
	"github.com/storefronthq/gateway/internal/gateway"
	"github.com/storefronthq/gateway/internal/logging"
	"github.com/storefronthq/gateway/internal/session"
)

func main() {
	var (
		configPath = flag.String("config", "config/gateway.yaml", "Path to gateway configuration")
		envFile    = flag.String("env", ".env", "Path to .env file (optional)")
	)
	flag.Parse()

	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New("gateway", cfg.LogLevel)

	sessions, err := session.NewCookieStore(session.CookieStoreConfig{
		Secret:     cfg.Session.Secret,
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL.Std(),
	})
	if err != nil {
		log.Fatalf("create session store: %v", err)
	}
	sessions.StartSweeper(10 * time.Minute)

	clients := make([]*backend.Client, 0, len(cfg.Backends))
	for _, name := range []struct {
		key     string
		service backend.Service
	}{
		{config.ServiceCatalog, backend.Catalog},
		{config.ServiceIdentity, backend.Identity},
		{config.ServiceOrder, backend.Order},
		{config.ServicePayment, backend.Payment},
	} {
		b := cfg.Backends[name.key]
		clients = append(clients, backend.NewClient(backend.ClientConfig{
			Service: name.service,
			BaseURL: b.BaseURL,
			Timeout: b.Timeout.Std(),
		}))
	}
	registry, err := backend.NewRegistry(clients...)
	if err != nil {
		log.Fatalf("build backend registry: %v", err)
	}

	server, err := gateway.New(gateway.Config{
		Gateway:  cfg,
		Logger:   logger,
		Sessions: sessions,
		Backends: registry,
	})
	if err != nil {
		log.Fatalf("build gateway: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.WithContext(ctx).WithFields(map[string]interface{}{
			"listen": cfg.Listen,
		}).Info("gateway listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown failed")
	}
}
