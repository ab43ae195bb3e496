// Command collector maintains the durable STOMP subscriptions to the
// national rail feeds and folds every inbound message into MongoDB.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/joshtingey/the-trains/internal/berths"
	"github.com/joshtingey/the-trains/internal/collector"
	"github.com/joshtingey/the-trains/internal/config"
	"github.com/joshtingey/the-trains/internal/feed"
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
		logger.Fatal("collector failed", zap.Error(err))
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

	if err := berths.Bootstrap(ctx, st, logger.Named("berths")); err != nil {
		return err
	}

	var feeds []*feed.Feed
	if cfg.Collector.PPM {
		feeds = append(feeds, feed.NewPPM(st, logger.Named("ppm")))
	}
	if cfg.Collector.TD {
		feeds = append(feeds, feed.NewTD(st, logger.Named("td"), cfg.Collector.TDTopics))
	}
	if cfg.Collector.TM {
		feeds = append(feeds, feed.NewTM(st, logger.Named("tm")))
	}
	if len(feeds) == 0 {
		return errors.New("no feeds enabled")
	}

	mgr := collector.New(cfg.Collector, feeds, logger.Named("stomp"))

	srv := ops.NewServer(cfg.HTTPListen, map[string]ops.Check{
		"mongo": st.Ping,
		"stomp": func(context.Context) error {
			if !mgr.Ready() {
				return fmt.Errorf("state %s", mgr.State())
			}
			return nil
		},
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

	if err := mgr.Run(ctx); err != nil {
		if errors.Is(err, collector.ErrMaxAttempts) {
			// Exhausting the attempt budget is an orderly stop; the
			// supervisor restarts with a fresh budget.
			logger.Warn("connection attempts exhausted, exiting")
			return nil
		}
		return err
	}
	return nil
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
