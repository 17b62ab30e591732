package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/racmathafidz/POS-Invoice/internal/cache"
	"github.com/racmathafidz/POS-Invoice/internal/config"
	"github.com/racmathafidz/POS-Invoice/internal/httpapi"
	"github.com/racmathafidz/POS-Invoice/internal/service"
	"github.com/racmathafidz/POS-Invoice/internal/store"
	"github.com/racmathafidz/POS-Invoice/internal/store/memory"
	pgstore "github.com/racmathafidz/POS-Invoice/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateAuthConfig(cfg); err != nil {
		log.Fatalf("invalid auth configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := pg.Bootstrap(ctx); err != nil {
			log.Fatalf("postgres bootstrap failed: %v", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	revenueCache := cache.RevenueCache(cache.NoopRevenueCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisRevenueCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			revenueCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	svc := service.New(repo, revenueCache, time.Duration(cfg.RevenueCacheTTLSeconds)*time.Second)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.AuthUsername, cfg.AuthPasswordHash)
	if auth.Enabled() {
		log.Println("auth: bearer token required for invoice creation")
	} else {
		log.Println("auth: open mode")
	}
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("invoicing API listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

// validateAuthConfig rejects half-configured auth: either the API runs open
// (no secret) or every auth knob must be present and strong enough.
func validateAuthConfig(cfg config.Config) error {
	if cfg.AuthSecret == "" {
		return nil
	}
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be at least 32 characters")
	}
	if cfg.AuthUsername == "" {
		return fmt.Errorf("AUTH_USERNAME must be set when AUTH_SECRET is set")
	}
	if cfg.AuthPasswordHash == "" {
		return fmt.Errorf("AUTH_PASSWORD_HASH must be set when AUTH_SECRET is set")
	}
	return nil
}
