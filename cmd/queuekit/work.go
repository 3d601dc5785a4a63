package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/queuekit/pkg/config"
	"github.com/dmitrymomot/queuekit/pkg/httpserver"
	"github.com/dmitrymomot/queuekit/pkg/logger"
	"github.com/dmitrymomot/queuekit/pkg/queue"
	"github.com/dmitrymomot/queuekit/pkg/queue/archive"
	"github.com/dmitrymomot/queuekit/pkg/queue/metrics"
)

const tracerName = "github.com/dmitrymomot/queuekit"

var errShutdownTimeout = errors.New("worker did not stop within the shutdown timeout")

func newWorkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Sweep queues until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWork(ctx)
		},
	}
}

func runWork(ctx context.Context) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	app, err := loadApp()
	if err != nil {
		return err
	}
	shutdownTracing := setupTracing(app, log)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.ErrorContext(ctx, "flush traces", logger.Error(err))
		}
	}()

	var (
		queueCfg   queue.Config
		httpCfg    httpserver.Config
		archiveCfg archive.Config
	)
	if err := config.Load(&queueCfg); err != nil {
		return err
	}
	if err := config.Load(&httpCfg); err != nil {
		return err
	}
	if err := config.Load(&archiveCfg); err != nil {
		return err
	}

	if !queueCfg.Enabled {
		log.InfoContext(ctx, "queue is disabled, nothing to do")
		return nil
	}

	b, err := openBackend(ctx, queueCfg.Driver, log)
	if err != nil {
		return err
	}
	defer b.close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewStatsCollector(b.store, queueCfg.Queues...),
	)

	jobLog, err := metrics.NewLogger(queue.NewSlogLogger(log), registry)
	if err != nil {
		return fmt.Errorf("register job metrics: %w", err)
	}

	resolver := queue.NewResolver()
	if err := registerTasks(resolver, log); err != nil {
		return err
	}

	executor, err := queue.NewExecutor(resolver,
		queue.WithExecutorLogger(jobLog),
		queue.WithTracer(otel.Tracer(tracerName)),
	)
	if err != nil {
		return err
	}

	manager, err := queue.NewManager(b.store,
		queue.WithRunner(executor),
		queue.WithSweeperOptions(queueCfg.SweeperOptions()...),
	)
	if err != nil {
		return err
	}

	workerOpts := append(queueCfg.WorkerOptions(), queue.WithWorkerLogger(log))
	if archiveCfg.Enabled {
		archiver, err := archive.NewS3Archiver(ctx, archiveCfg.S3Config(),
			archive.WithUploadTimeout(archiveCfg.UploadTimeout))
		if err != nil {
			return err
		}
		workerOpts = append(workerOpts, queue.WithArchiver(archiver))
		log.InfoContext(ctx, "archiving failed jobs before purge", slog.String("bucket", archiveCfg.Bucket))
	}

	worker, err := queue.NewWorker(manager, workerOpts...)
	if err != nil {
		return err
	}

	heartbeat, err := newHeartbeat(manager, queueCfg, log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runWorker(gctx, worker, queueCfg.ShutdownTimeout)
	})
	if heartbeat != nil {
		g.Go(heartbeat.Run(gctx))
	}

	if httpCfg.Enabled {
		router := httpserver.NewRouter(
			httpserver.WithRouterLogger(log),
			httpserver.WithGatherer(registry),
			httpserver.WithCheckTimeout(httpCfg.CheckTimeout),
			httpserver.WithChecks(
				b.check,
				httpserver.NewCheck("worker", func(context.Context) error { return worker.Healthy() }),
			),
		)
		srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
		g.Go(func() error {
			return srv.Run(gctx, router)
		})
	}

	if err := g.Wait(); err != nil {
		log.ErrorContext(ctx, "queuekit stopped with error", logger.Error(err))
		return err
	}
	log.InfoContext(ctx, "queuekit stopped")
	return nil
}

// runWorker sweeps until ctx is done, then waits up to timeout for in-flight sweeps
func runWorker(ctx context.Context, w *queue.Worker, timeout time.Duration) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopped := make(chan error, 1)
	go func() { stopped <- w.Stop() }()

	if timeout <= 0 {
		return <-stopped
	}
	select {
	case err := <-stopped:
		return err
	case <-time.After(timeout):
		return errShutdownTimeout
	}
}
