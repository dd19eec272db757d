// cmd/server/main.go
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/sudoku-lobby/internal/cache"
	"github.com/jason-s-yu/sudoku-lobby/internal/config"
	"github.com/jason-s-yu/sudoku-lobby/internal/handlers"
	"github.com/jason-s-yu/sudoku-lobby/internal/lobby"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	path := config.DefaultEnvFile
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	configureLogger(logger, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []lobby.Option
	journalDone := make(chan struct{})
	journalCtx, stopJournal := context.WithCancel(context.Background())
	if cfg.RedisAddr == "" {
		close(journalDone)
	} else {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("journal: %v", err)
		}
		defer rdb.Close()
		journal := cache.NewJournal(rdb, cfg.EventsQueue, cache.DefaultBuffer, logger)
		go func() {
			defer close(journalDone)
			journal.Run(journalCtx)
		}()
		opts = append(opts, lobby.WithJournal(journal))
		logger.WithField("queue", cfg.EventsQueue).Info("publishing lobby events to Redis")
	}

	l := lobby.New(cfg, logger, opts...)
	sup := handlers.NewSupervisor(l, cfg, logger)
	router := handlers.NewRouter(sup, l, cfg, logger)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Fatalf("listen on %s: %v", cfg.ListenAddr, err)
	}
	err = sup.Listen(ctx, ln, router)

	// Stop the journal only after every session has left the lobby.
	stopJournal()
	<-journalDone
	if err != nil {
		logger.Fatalf("server exited: %v", err)
	}
	logger.Info("lobby server stopped")
}

func configureLogger(logger *logrus.Logger, level, format string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.Warnf("unknown LOG_LEVEL %q, using info", level)
	}
	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
}
