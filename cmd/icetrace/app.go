package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"icetrace/internal/blob"
	"icetrace/internal/config"
	"icetrace/internal/core"
	"icetrace/internal/event"
	"icetrace/internal/infra/persistence/memory"
	"icetrace/pkg/domain"
)

var globalFlags = struct {
	debug       bool
	configFile  string
	metricsFile string
}{}

// app holds everything a subcommand needs. It is built once per invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	svc      *core.Service
	store    core.PersistentStore
	bus      *event.Bus
	registry *prometheus.Registry
}

func commonRun(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{
		AddSource: level == slog.LevelDebug,
		Level:     level,
	}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), opts)
	} else {
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	// Configure max processes with our logger wrapper, toss undo func
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
		logger.Debug(fmt.Sprintf(format, v...), "component", programName)
	})); err != nil {
		return nil, fmt.Errorf("set maxprocs: %w", err)
	}
	return logger, nil
}

func newApp(cmd *cobra.Command, cfg *config.Config) (*app, error) {
	logger, err := commonRun(cmd, cfg)
	if err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return nil, err
	}
	bus := event.NewBus(registry, logger)
	for _, kind := range domain.EntityTypes() {
		bus.SubscribeFunc(event.AddedType(kind), func(evt event.Event) {
			added, ok := evt.Data.(event.EntityAdded)
			if !ok {
				return
			}
			logger.Debug("record added", "component", programName, "entity", added.Entity, "id", added.ID)
		})
	}
	ctx := cmd.Context()
	store, err := core.OpenPersistentStore(ctx, cfg.Storage(), core.NewDefaultRulesEngine(), memory.WithNow(nowUTC))
	if err != nil {
		bus.Stop()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	svc := core.NewService(store,
		core.WithLogger(core.NewSlogLogger(logger)),
		core.WithAuditRecorder(core.NewLogAuditRecorder(logger)),
		core.WithMetricsRecorder(metrics),
		core.WithEventPublisher(bus),
	)
	logger.Debug("storage opened", "component", programName, "driver", cfg.Storage().Driver)
	return &app{cfg: cfg, logger: logger, svc: svc, store: store, bus: bus, registry: registry}, nil
}

func (a *app) archiver(ctx context.Context) (*core.Archiver, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		cfg = a.cfg
	}
	blobs, err := blob.Open(ctx, cfg.BlobConfig())
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return core.NewArchiver(a.svc, blobs), nil
}

func (a *app) close() error {
	a.bus.Stop()
	var err error
	if globalFlags.metricsFile != "" {
		err = prometheus.WriteToTextfile(globalFlags.metricsFile, a.registry)
	}
	if c, ok := a.store.(io.Closer); ok {
		if cErr := c.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}
	return err
}

type appContextKey struct{}

func appFromContext(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appContextKey{}).(*app)
	if !ok {
		return nil, fmt.Errorf("no application in context")
	}
	return a, nil
}
