// cmd/historian/main.go is the journal consumer: it pops lobby events from Redis
// and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/sudoku-lobby/internal/cache"
	"github.com/jason-s-yu/sudoku-lobby/internal/config"
	"github.com/jason-s-yu/sudoku-lobby/internal/database"
	"github.com/jason-s-yu/sudoku-lobby/internal/historian"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	path := config.DefaultEnvFile
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.LoadHistorian(path)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()
	store := database.NewEventStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatalf("database: %v", err)
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	historian.New(rdb, store, cfg, logger).Run(ctx)
	logger.Info("historian shutdown complete")
}
