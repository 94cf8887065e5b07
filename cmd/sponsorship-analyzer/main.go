package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/app"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/async"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/core"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/export"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/repository"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/server"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/services/analysis"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	queue := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.JobTimeout),
	)
	svc := analysis.NewService(a.Jobs, a.Offers, a.Packages, a.Placements, queue, a.Status, logger)
	exporter := export.NewService(a.Offers, a.Packages, a.Placements, logger)
	reconciler := core.NewReconciler(a.Jobs, a.Status, cfg.ReconcileAfter, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return reconciler.Run(gctx) })

	if addr := cfg.Server.HTTPAddr; addr != "" {
		srv := &http.Server{
			Addr: addr,
			Handler: server.NewHTTPHandler(svc, exporter, func(ctx context.Context) error {
				return repository.HealthCheck(ctx, a.DB, 2*time.Second, logger)
			}, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("http listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if addr := cfg.Server.GRPCAddr; addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", addr, "error", err)
			os.Exit(1)
		}
		gs, hs := server.NewGRPCServer(svc, logger)
		g.Go(func() error {
			logger.Info("grpc listening", "addr", addr)
			return gs.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			hs.Shutdown()
			gs.GracefulStop()
			return nil
		})
	}

	err = g.Wait()

	// In-flight jobs finish; their terminal status is written before exit.
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Queue.JobTimeout)
	defer cancel()
	queue.Shutdown(sctx)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
