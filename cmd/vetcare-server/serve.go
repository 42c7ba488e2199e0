package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"vetcare/backend/internal/jobs"
	grpcTransport "vetcare/backend/internal/transport/grpc"
	httpTransport "vetcare/backend/internal/transport/http"
)

func newServeCommand() *cobra.Command {
	var withoutJobs bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC APIs and the no-show sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), !withoutJobs)
		},
	}
	cmd.Flags().BoolVar(&withoutJobs, "no-jobs", false, "do not run the periodic no-show sweep in this process")
	return cmd
}

func serve(parent context.Context, runJobs bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	cfg, log := a.cfg, a.log

	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("log_level", cfg.Log.Level),
	)

	router, err := httpTransport.NewRouter(a.svc, httpTransport.Options{
		Logger:  log,
		Metrics: a.metrics.Handler(),
		Ready:   a.ready,
	})
	if err != nil {
		log.Error("http router setup failed", slog.Any("err", err))
		return err
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer, health := grpcTransport.NewServer(a.svc, log, cfg.GRPCRequestTimeout)
	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	var sched *jobs.Scheduler
	if runJobs {
		sched, err = jobs.New(a.svc, jobs.Config{
			NoShowSchedule: cfg.NoShowSchedule,
			NoShowGrace:    cfg.NoShowGrace,
			Location:       cfg.ClinicLocation,
		}, log)
		if err != nil {
			log.Error("job scheduler setup failed", slog.Any("err", err))
			_ = lis.Close()
			return err
		}
		sched.Start()
	}

	errCh := make(chan error, 2)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()

	log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))
	log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case runErr = <-errCh:
		log.Error("server stopped with error", slog.Any("err", runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	log.Info("shutting down http server", slog.Duration("timeout", cfg.ShutdownTimeout))
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http graceful shutdown failed; closing", slog.Any("err", err))
		_ = httpServer.Close()
	}
	grpcTransport.Shutdown(log, grpcServer, health, cfg.ShutdownTimeout)
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Warn("no-show sweep still running at shutdown", slog.Any("err", err))
		}
	}
	return runErr
}
