// jizhang-export consumes transaction-created events and appends each new
// transaction to a CSV ledger file. It shares the SQLite database with the
// server and reads rows by id as the events arrive.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/bcyyahz/jizhangAPP/internal/amqp"
	"github.com/bcyyahz/jizhangAPP/internal/cli"
	"github.com/bcyyahz/jizhangAPP/internal/export"
	"github.com/bcyyahz/jizhangAPP/internal/log"
	"github.com/bcyyahz/jizhangAPP/internal/storage"
)

func main() {
	cfg, logger := cli.Setup(log.ComponentExport)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}
	if cfg.DataBackend != "sqlite" {
		logger.Error("Export worker requires the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	worker := export.NewWorker(store, cfg.ExportPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting export worker",
			"queue", cfg.AMQPQueue, "ledger", cfg.ExportPath)
		return amqp.ConsumeWithRetry(gctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, worker.HandleCreated)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Export worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Export worker stopped")
}
