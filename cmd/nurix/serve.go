package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/SaiNageswarS/NurixLearn/pkg/events"
	"github.com/SaiNageswarS/NurixLearn/pkg/log"
	"github.com/SaiNageswarS/NurixLearn/pkg/web"
	cli "github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the workflow engine",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, command *cli.Command) error {
	logger := log.WithModule("api")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.InfoContext(ctx, "Initializing Nurix API")

	rt, err := newRuntime(ctx, command, logger)
	if err != nil {
		return err
	}
	defer rt.close(context.WithoutCancel(ctx))

	notifications := log.WithModule("notifications")

	if err := rt.eventBus.Handle(events.ErrorNotificationEvent, func(ctx context.Context, event any) error {
		n, ok := event.(*events.ErrorNotification)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}

		notifications.WarnContext(ctx, "Errors need attention",
			"workflow_id", n.WorkflowID,
			"source", n.Source,
			"max_severity", n.MaxSeverity,
			"errors", len(n.Errors))

		return nil
	}); err != nil {
		return err
	}

	if err := rt.eventBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	recovered, err := rt.engine.Recover(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover executions: %w", err)
	}

	logger.InfoContext(ctx, "Recovered executions", "count", recovered)

	app := web.NewApp(rt.handlers(), web.AppConfig{RequestLog: true})

	listenErr := make(chan error, 1)

	go func() {
		listenErr <- app.Listen(":" + strconv.Itoa(command.Int("port")))
	}()

	select {
	case err := <-listenErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("api server stopped: %w", err)
		}

		return nil
	case <-ctx.Done():
		logger.InfoContext(ctx, "Shutting down Nurix API")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		return app.ShutdownWithContext(shutdownCtx)
	}
}
