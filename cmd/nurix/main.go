// Command nurix serves the evaluation workflows API and runs one-shot gradings.
package main

import (
	"context"
	"os"
	"time"

	"github.com/SaiNageswarS/NurixLearn/pkg/cache"
	"github.com/SaiNageswarS/NurixLearn/pkg/catalog"
	"github.com/SaiNageswarS/NurixLearn/pkg/engine"
	"github.com/SaiNageswarS/NurixLearn/pkg/log"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/session"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("nurix")

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		logger.Error("nurix failed", "error", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "nurix",
		Usage:                 "Durable evaluation workflows with session-consistent caching",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Store URL (file://, postgres://, badger://, memory://)",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "cache-url",
				Usage:   "Cache URL (redis://, memory://)",
				Value:   "memory://",
				Sources: cli.EnvVars("CACHE_URL"),
			},
			&cli.DurationFlag{
				Name:    "cache-ttl",
				Usage:   "Lifetime of cached responses",
				Value:   cache.DefaultTTL,
				Sources: cli.EnvVars("CACHE_TTL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:     "oracle-url",
				Usage:    "Base URL of the scoring oracle",
				Required: true,
				Sources:  cli.EnvVars("ORACLE_URL"),
			},
			&cli.DurationFlag{
				Name:    "oracle-timeout",
				Usage:   "Timeout of one oracle call",
				Value:   30 * time.Second,
				Sources: cli.EnvVars("ORACLE_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "resolution-timeout",
				Usage:   "Default wait for error resolution before auto-resolving",
				Value:   catalog.DefaultDefaults.ResolutionTimeout,
				Sources: cli.EnvVars("RESOLUTION_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "monitor-interval",
				Usage:   "Default monitoring schedule (duration, @every, or cron spec)",
				Value:   models.DefaultMonitorSchedule,
				Sources: cli.EnvVars("MONITOR_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "severity-threshold",
				Usage:   "Default notification threshold (low, medium, high, critical)",
				Value:   string(catalog.DefaultDefaults.SeverityThreshold),
				Sources: cli.EnvVars("SEVERITY_THRESHOLD"),
			},
			&cli.IntFlag{
				Name:    "step-attempts",
				Usage:   "Attempts per workflow step before the execution fails",
				Value:   engine.DefaultRetryPolicy.Attempts,
				Sources: cli.EnvVars("STEP_ATTEMPTS"),
			},
			&cli.DurationFlag{
				Name:    "lock-wait-report",
				Usage:   "Report a session lock wait longer than this (0 disables)",
				Value:   session.DefaultLockWaitReport,
				Sources: cli.EnvVars("LOCK_WAIT_REPORT"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export step traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"), command.String("log-format"))
			session.ConfigureLockDiagnostics(command.Duration("lock-wait-report"), nil)

			return ctx, nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			gradeCommand(),
		},
	}
}
