package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SaiNageswarS/NurixLearn/pkg/cache"
	"github.com/SaiNageswarS/NurixLearn/pkg/catalog"
	"github.com/SaiNageswarS/NurixLearn/pkg/cmd"
	"github.com/SaiNageswarS/NurixLearn/pkg/coherence"
	"github.com/SaiNageswarS/NurixLearn/pkg/engine"
	"github.com/SaiNageswarS/NurixLearn/pkg/eventbus"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/oracle"
	"github.com/SaiNageswarS/NurixLearn/pkg/otelhelper"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"github.com/SaiNageswarS/NurixLearn/pkg/services"
	"github.com/SaiNageswarS/NurixLearn/pkg/session"
	"github.com/SaiNageswarS/NurixLearn/pkg/web"
	cli "github.com/urfave/cli/v3"
)

// runtime is the wired process: backends, engine, catalog and services.
type runtime struct {
	logger *slog.Logger

	store    persistence.Store
	cache    cache.Cache
	eventBus eventbus.EventBus
	shutdown otelhelper.ShutdownFunc

	engine     *engine.Engine
	workflows  *services.Workflows
	evaluation *services.Evaluation
	sessions   *services.Sessions
	health     *services.Health
}

func newRuntime(ctx context.Context, command *cli.Command, logger *slog.Logger) (rt *runtime, err error) {
	rt = &runtime{logger: logger}

	defer func() {
		if err != nil {
			rt.close(context.WithoutCancel(ctx))
		}
	}()

	if rt.store, err = cmd.NewStore(ctx, logger, command.String("database-url")); err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if rt.cache, err = cmd.NewCache(ctx, logger, command.String("cache-url")); err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	if rt.eventBus, err = cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger); err != nil {
		return nil, err
	}

	tracer := otelhelper.NoopTracer()
	if command.Bool("otel-enabled") {
		if tracer, rt.shutdown, err = otelhelper.NewTracer(ctx, "nurix"); err != nil {
			return nil, fmt.Errorf("failed to start tracing: %w", err)
		}
	}

	rt.engine, err = engine.New(engine.Options{
		Store:     rt.store,
		Publisher: rt.eventBus,
		Tracer:    tracer,
		Logger:    logger,
		Retry:     engine.RetryPolicy{Attempts: command.Int("step-attempts")},
	})
	if err != nil {
		return nil, err
	}

	tracker := session.NewTracker(rt.store, logger)
	policy := coherence.New(rt.cache, coherence.Sources{
		coherence.KindSession:  tracker.Version,
		coherence.KindWorkflow: rt.engine.Version,
	}, command.Duration("cache-ttl"), logger)

	tracker.OnChange(func(ctx context.Context, socketID string) error {
		return policy.Invalidate(ctx, coherence.SessionOwner(socketID))
	})

	threshold, err := models.ParseSeverity(command.String("severity-threshold"))
	if err != nil {
		return nil, err
	}

	client := oracle.NewHTTPClient(command.String("oracle-url"), command.Duration("oracle-timeout"), logger)

	cat, err := catalog.New(catalog.Config{
		Notifier:    catalog.NewEventNotifier(rt.eventBus),
		Oracle:      client,
		Tracker:     tracker,
		Invalidator: policy,
		Logger:      logger,
		Defaults: catalog.Defaults{
			SeverityThreshold: threshold,
			ResolutionTimeout: command.Duration("resolution-timeout"),
			MonitorSchedule:   command.String("monitor-interval"),
		},
	})
	if err != nil {
		return nil, err
	}

	if err := cat.Register(rt.engine); err != nil {
		return nil, err
	}

	rt.workflows = services.NewWorkflows(rt.engine, cat, rt.store, policy, logger)
	rt.evaluation = services.NewEvaluation(rt.engine, cat, policy, logger)
	rt.sessions = services.NewSessions(tracker, policy, logger)
	rt.health = services.NewHealth(rt.store, rt.cache)

	return rt, nil
}

func (rt *runtime) handlers() *web.APIHandlers {
	return web.NewAPIHandlers(rt.workflows, rt.evaluation, rt.sessions, rt.health)
}

// close stops the engine first so no step writes to a closed backend.
func (rt *runtime) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var errs []error

	if rt.engine != nil {
		errs = append(errs, rt.engine.Shutdown(ctx))
	}

	if rt.eventBus != nil {
		errs = append(errs, rt.eventBus.Close())
	}

	if rt.cache != nil {
		errs = append(errs, rt.cache.Close())
	}

	if rt.store != nil {
		errs = append(errs, rt.store.Close(ctx))
	}

	if rt.shutdown != nil {
		errs = append(errs, rt.shutdown(ctx))
	}

	if err := errors.Join(errs...); err != nil {
		rt.logger.ErrorContext(ctx, "Failed to shut down cleanly", "error", err)
	}
}
