package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ringstat/internal"
	"ringstat/internal/config"
	"ringstat/internal/container"

	"github.com/joho/godotenv"
)

// Serves stored sweeps, live progress and metrics without running a sweep.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	internal.DefaultLogger = internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level))
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}

	c, err := container.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.InitDatabase(ctx); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if c.SweepRepo == nil {
		log.Printf("DATABASE_URL not set; only live progress and metrics are served")
	}
	c.StartServer(cfg.Server.ListenAddr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown: %v", err)
	}
}
