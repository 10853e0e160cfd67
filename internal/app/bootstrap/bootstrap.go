package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"fundgate/internal/platform/grpcserver"
	"fundgate/internal/platform/httpserver"
	"fundgate/internal/platform/scheduler"

	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const healthServiceName = "fundgate.escrow"

type APIApp struct {
	runtime *runtime
	server  *httpserver.Server
	grpc    *grpcserver.Server
	logger  *slog.Logger
}

type WorkerApp struct {
	runtime   *runtime
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

func BuildAPI(ctx context.Context, configPath string) (*APIApp, error) {
	rt, err := buildRuntime(ctx, configPath, "api", false)
	if err != nil {
		return nil, err
	}
	return &APIApp{
		runtime: rt,
		server:  httpserver.New(rt.module, rt.logger, normalizeAddr(rt.cfg.HTTPPort)),
		grpc:    grpcserver.New(normalizeAddr(rt.cfg.GRPCPort), rt.logger),
		logger:  rt.logger,
	}, nil
}

func BuildWorker(ctx context.Context, configPath string) (*WorkerApp, error) {
	rt, err := buildRuntime(ctx, configPath, "worker", true)
	if err != nil {
		return nil, err
	}
	w := rt.module.Workers
	jobs := []scheduler.Job{
		{
			Name:     "voting-window-sweep",
			Interval: rt.cfg.SweepInterval,
			Run: func(ctx context.Context) error {
				_, err := w.Sweeper.RunOnce(ctx)
				return err
			},
		},
		{Name: "release-retry", Interval: rt.cfg.RetryInterval, Run: w.ReleaseRetrier.RunOnce},
		{Name: "refund-retry", Interval: rt.cfg.RetryInterval, Run: w.RefundRetrier.RunOnce},
	}
	if w.OutboxRelay.Publisher != nil {
		jobs = append(jobs, scheduler.Job{Name: "outbox-relay", Interval: rt.cfg.RelayInterval, Run: w.OutboxRelay.RunOnce})
	}
	return &WorkerApp{
		runtime:   rt,
		scheduler: scheduler.New(rt.logger, jobs...),
		logger:    rt.logger,
	}, nil
}

// Run serves HTTP and gRPC health until ctx is cancelled or either fails.
func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	a.grpc.SetServing(healthServiceName, true)
	defer a.grpc.SetServing(healthServiceName, false)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.server.Run(gctx) })
	g.Go(func() error { return a.grpc.Run(gctx) })
	return g.Wait()
}

func (a *APIApp) Close() error {
	return a.runtime.Close()
}

// Run starts the donation consumer and the periodic jobs, then blocks until
// ctx is cancelled.
func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.runtime.module.Workers.Donations.Start(ctx); err != nil {
		return err
	}
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	if err := w.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (w *WorkerApp) Close() error {
	return w.runtime.Close()
}
