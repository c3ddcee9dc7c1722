package main

import (
	"context"
	"os"

	"github.com/BolajiAyodeji/lightning/pkg/cmd"
	"github.com/BolajiAyodeji/lightning/pkg/log"
	"github.com/BolajiAyodeji/lightning/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort     = 4000
	defaultRunQuota = 100
)

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "lightning-api",
		Usage:                 "Create and manage work orders and runs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "queue-url",
				Usage:   "Run queue URL (redis://... for Redis, empty for in-memory)",
				Sources: cli.EnvVars("QUEUE_URL"),
			},
			&cli.StringFlag{
				Name:    "limiter-url",
				Usage:   "Admission limiter URL (redis://... for Redis, empty to disable)",
				Sources: cli.EnvVars("LIMITER_URL"),
			},
			&cli.IntFlag{
				Name:    "run-quota",
				Usage:   "Per-project run quota enforced by the Redis limiter",
				Value:   defaultRunQuota,
				Sources: cli.EnvVars("RUN_QUOTA"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP (endpoint via OTEL_EXPORTER_OTLP_* variables)",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Lightning API")

			// Installs the global tracer provider; must run before the
			// services construct their tracers.
			if command.Bool("tracing") {
				_, err := otelhelper.NewTracer(ctx, "lightning-api")
				if err != nil {
					return err
				}
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			runQueue, err := cmd.NewRunQueue(command.String("queue-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := runQueue.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close run queue", "error", err)
				}
			}()

			gate, err := cmd.NewLimiter(command.String("limiter-url"), int64(command.Int("run-quota")))
			if err != nil {
				return err
			}

			api := NewAPI(
				logger,
				persistence,
				eventBus,
				runQueue,
				gate,
			)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
