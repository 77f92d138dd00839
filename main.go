package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/valyala/fasthttp"

	"strideminder/internal/acquisition"
	"strideminder/internal/aggregate"
	"strideminder/internal/config"
	"strideminder/internal/db"
	"strideminder/internal/gait"
	"strideminder/internal/http/handlers"
	appmw "strideminder/internal/http/middleware"
	"strideminder/internal/telemetry"
	"strideminder/internal/worker"
)

func main() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, nil)))

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config", err)
	}

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		fatal("failed to connect database", err)
	}

	if cfg.DeviceKey != "" {
		if err := db.EnsureBootstrapDevice(sqlDB, cfg); err != nil {
			fatal("failed to ensure bootstrap device", err)
		}
		slog.Info("bootstrap device configured", slog.String("name", cfg.DeviceName))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry.Init(nil)
	db.StartRetentionWorker(ctx, sqlDB, cfg.RetentionDays)

	agg := aggregate.New(db.NewStore(sqlDB), slog.Default())
	agg.OnRollup = func(g aggregate.Granularity, _ aggregate.Record) {
		telemetry.ObserveRollup(g.String())
	}

	proc := gait.NewProcessor(gait.Config{
		WalkingRMSThreshold: cfg.Gait.WalkingRMSThreshold,
		MaxLag:              cfg.Gait.MaxLag,
		FullLengthRMS:       cfg.Gait.FullLengthRMS,
	})
	// Workers outlive ctx so queued batches are drained on shutdown.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	pool := worker.New(proc, agg, cfg.Workers, cfg.Workers*2, slog.Default())
	pool.Start(workCtx)

	hub := acquisition.NewHub(
		acquisition.Config{BlockDuration: cfg.Gait.BlockDuration, Capacity: cfg.Gait.BufferCapacity},
		func(ctx context.Context, device string, b gait.Batch) error {
			return pool.Submit(ctx, worker.NewJob(device, b))
		},
		slog.Default(),
	)

	r := router.New()
	auth := appmw.BearerAuth(sqlDB)
	route := func(method, path string, h fasthttp.RequestHandler) {
		r.Handle(method, path, appmw.Route(path, h))
	}

	route(fasthttp.MethodGet, "/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})

	route(fasthttp.MethodPost, "/v1/batches", auth(handlers.BatchHandler(pool)))
	route(fasthttp.MethodPost, "/v1/samples", auth(handlers.SamplesHandler(hub)))
	route(fasthttp.MethodGet, "/v1/gait/{granularity}", auth(handlers.SeriesHandler(agg)))
	route(fasthttp.MethodGet, "/v1/gait/{granularity}/last", auth(handlers.LastHandler(agg)))
	route(fasthttp.MethodGet, "/v1/gait/{granularity}/export", auth(handlers.ExportHandler(agg)))
	route(fasthttp.MethodGet, "/v1/metrics", auth(handlers.DeviceMetricsHandler(nil)))

	// Global middleware chain: request logger, then instrumentation, then router
	server := &fasthttp.Server{
		Handler:            handlers.RequestLogger(appmw.Instrument(r.Handler)),
		Name:               "strideminder",
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       60 * time.Second,
		MaxRequestBodySize: 8 << 20,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("strideminder listening", slog.String("addr", cfg.ListenAddr))
		errc <- server.ListenAndServe(cfg.ListenAddr)
	}()

	select {
	case err := <-errc:
		if err != nil {
			fatal("server error", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	if err := server.Shutdown(); err != nil {
		slog.Error("server shutdown", slog.Any("err", err))
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelDrain()
	if err := hub.FlushAll(drainCtx); err != nil {
		slog.Warn("partial blocks lost", slog.Any("err", err))
	}
	pool.Close()
	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-drainCtx.Done():
		slog.Warn("worker drain timed out")
		cancelWork()
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, slog.Any("err", err))
	os.Exit(1)
}
