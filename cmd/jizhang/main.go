package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bcyyahz/jizhangAPP/internal/amqp"
	"github.com/bcyyahz/jizhangAPP/internal/backend"
	"github.com/bcyyahz/jizhangAPP/internal/cli"
	apphttp "github.com/bcyyahz/jizhangAPP/internal/http"
	"github.com/bcyyahz/jizhangAPP/internal/log"
	"github.com/bcyyahz/jizhangAPP/internal/state"
)

func main() {
	cfg, logger := cli.Setup(log.ComponentApp)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.New(cfg)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	var opts []state.Option
	if cfg.AMQPURL != "" {
		publisher, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// The tracker works without the event feed; exports just stall.
			logger.Warn("Transaction event feed disabled", "error", err)
		} else {
			defer publisher.Close()
			opts = append(opts, state.WithEventPublisher(publisher))
			logger.Info("Transaction event feed enabled", "exchange", cfg.AMQPExchange)
		}
	}

	holder := state.New(store, opts...)
	if err := holder.Start(ctx); err != nil {
		logger.Error("Failed to start state holder", "error", err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, holder)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting jizhang server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
