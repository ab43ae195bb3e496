// Command generator periodically rebuilds the berth network from the
// collected movements and writes a pinned force-directed layout back to
// MongoDB.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/joshtingey/the-trains/internal/config"
	"github.com/joshtingey/the-trains/internal/generator"
	"github.com/joshtingey/the-trains/internal/metrics"
	"github.com/joshtingey/the-trains/internal/ops"
	"github.com/joshtingey/the-trains/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	logLevel := flag.String("log-level", "", "override configured log level")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("generator failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Connect(ctx, cfg.Mongo.URI(), logger.Named("store"))
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	srv := ops.NewServer(cfg.HTTPListen, map[string]ops.Check{
		"mongo": st.Ping,
	}, logger.Named("ops"))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("ops server failed", zap.Error(err))
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	gen := generator.New(st, cfg.Generator, logger.Named("generator"))
	return gen.Loop(ctx)
}

func initLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", level, err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
