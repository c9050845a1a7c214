package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/enesbasbug/async-translator/internal/cli"
	"github.com/enesbasbug/async-translator/internal/httpapi"
	"github.com/enesbasbug/async-translator/internal/langdetect"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8000, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	drainTimeout := fs.Duration("drain-timeout", 2*time.Minute, "How long running translations may finish after shutdown starts")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	cfg, logger, closeLog, code := loadRuntime(envLoader)
	if code != 0 {
		return code
	}
	defer closeLog()

	connectCtx, connectCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connectCancel()

	store, closeStore, err := openStore(connectCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Str("backend", cfg.StoreBackend).Msg("serve failed to connect to task store")
		fmt.Fprintf(os.Stderr, "Failed to connect to task store: %v\n", err)
		return 1
	}
	defer closeStore()

	orchestrator, pool, closeEvents, err := newOrchestrator(cfg, store, logger)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to build orchestrator")
		fmt.Fprintf(os.Stderr, "Failed to initialize translation: %v\n", err)
		return 1
	}
	defer closeEvents()

	go langdetect.Warm()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpapi.NewServer(orchestrator, store, logger, httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), *drainTimeout)
		defer cancel()
		if err := pool.Shutdown(drainCtx); err != nil {
			logger.Warn().Err(err).Msg("translation pool did not drain before deadline")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
