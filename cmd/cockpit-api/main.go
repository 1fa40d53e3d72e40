package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/start-berlin/cockpit/pkg/cmd"
	"github.com/start-berlin/cockpit/pkg/log"
	"github.com/start-berlin/cockpit/pkg/token"
)

const defaultPort = 9090

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "cockpit-api",
		Usage:                 "Receive events and serve workflow runs",
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
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "approval-secret",
				Usage:    "Secret for verifying approval tokens",
				Required: true,
				Sources:  cli.EnvVars("APPROVAL_TOKEN_SECRET"),
			},
			&cli.StringFlag{
				Name:     "slack-signing-secret",
				Usage:    "Slack app signing secret",
				Required: true,
				Sources:  cli.EnvVars("SLACK_SIGNING_SECRET"),
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

			logger.InfoContext(ctx, "Initializing Cockpit API")

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "cockpit-api", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			p, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := p.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			api := NewAPI(
				logger,
				p,
				eventBus,
				token.NewSigner(command.String("approval-secret")),
				command.String("slack-signing-secret"),
			)

			return api.Start(command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		logger.Error("API exited with error", "error", err)
		os.Exit(1)
	}
}
