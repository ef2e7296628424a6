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

	"planningpoker/internal/adminauth"
	"planningpoker/internal/app"
	"planningpoker/internal/config"
	"planningpoker/internal/kv"
	"planningpoker/internal/store"
)

func main() {
	if len(os.Args) == 3 && os.Args[1] == "hash-password" {
		hash, err := adminauth.HashPassword(os.Args[2])
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg := config.Load()
	ctx := context.Background()

	sessionStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("session store unavailable: %v", err)
	}
	defer sessionStore.Close()

	gate, err := adminauth.NewGate(cfg.AdminPasswordHash)
	if err != nil {
		log.Fatalf("invalid POKER_ADMIN_PASSWORD_HASH: %v", err)
	}
	if !gate.Enabled() {
		log.Printf("WARNING: admin routes are open, set POKER_ADMIN_PASSWORD_HASH to protect them")
	}

	service := app.New(cfg, sessionStore)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if cfg.SweepInterval > 0 {
		go sweepExpired(sweepCtx, service, cfg.SweepInterval)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, gate)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Planning poker API listening on %s (store=%s)", cfg.Addr, cfg.Store)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (kv.Store, error) {
	switch cfg.Store {
	case config.StoreRedis:
		log.Printf("Using Redis for session storage")
		return kv.NewRedisStore(cfg.RedisURL)
	case config.StorePostgres:
		log.Printf("Using PostgreSQL for session storage")
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		return store.NewPostgresKV(db), nil
	default:
		return nil, fmt.Errorf("unknown POKER_STORE %q", cfg.Store)
	}
}

// sweepExpired evicts expired sessions on a timer. Reads already evict
// lazily; this only keeps the index from growing with abandoned sessions.
func sweepExpired(ctx context.Context, service *app.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted, err := service.SweepExpired(ctx)
			if err != nil {
				log.Printf("sweep failed: %v", err)
				continue
			}
			if evicted > 0 {
				log.Printf("Swept %d expired sessions", evicted)
			}
		}
	}
}
