package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/start-berlin/cockpit/pkg/cmd"
	"github.com/start-berlin/cockpit/pkg/log"
	"github.com/start-berlin/cockpit/pkg/otelhelper"
	"github.com/start-berlin/cockpit/pkg/workflow"
	"github.com/start-berlin/cockpit/pkg/workflows"
)

func main() {
	command := &cli.Command{
		Name:                  "cockpit-worker",
		Usage:                 "Run the Cockpit provisioning workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the run store (falls back to the database)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "domain",
				Usage:   "Company email domain",
				Value:   "start-berlin.com",
				Sources: cli.EnvVars("COMPANY_DOMAIN"),
			},
			&cli.StringFlag{
				Name:    "from-address",
				Usage:   "Sender address for transactional email",
				Value:   "cockpit@start-berlin.com",
				Sources: cli.EnvVars("EMAIL_FROM"),
			},
			&cli.StringFlag{
				Name:     "base-url",
				Usage:    "Public origin of the Cockpit API, used in approval links",
				Required: true,
				Sources:  cli.EnvVars("BASE_URL"),
			},
			&cli.StringFlag{
				Name:     "google-subject",
				Usage:    "Workspace admin account to impersonate",
				Required: true,
				Sources:  cli.EnvVars("GOOGLE_SUBJECT"),
			},
			&cli.StringFlag{
				Name:     "slack-bot-token",
				Usage:    "Slack bot token",
				Required: true,
				Sources:  cli.EnvVars("SLACK_BOT_TOKEN"),
			},
			&cli.StringFlag{
				Name:     "resend-api-key",
				Usage:    "Resend API key",
				Required: true,
				Sources:  cli.EnvVars("RESEND_API_KEY"),
			},
			&cli.StringFlag{
				Name:     "approval-secret",
				Usage:    "Secret for signing approval tokens",
				Required: true,
				Sources:  cli.EnvVars("APPROVAL_TOKEN_SECRET"),
			},
			&cli.DurationFlag{
				Name:    "approval-timeout",
				Usage:   "How long approval-gated runs stay suspended",
				Value:   time.Hour,
				Sources: cli.EnvVars("APPROVAL_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "reconcile-schedule",
				Usage:   "Cron schedule for the directory reconciliation sweep",
				Value:   "0 * * * *",
				Sources: cli.EnvVars("RECONCILE_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		log.WithModule("cockpit-worker").Error("Worker exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("cockpit-worker").With("worker_id", workerID)
	logger.InfoContext(ctx, "Initializing Cockpit worker")

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), "cockpit-worker", logger)
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

	runs, err := cmd.NewRunRepository(p, command.String("redis-url"))
	if err != nil {
		return err
	}

	services, err := cmd.NewServices(ctx, cmd.ServicesConfig{
		Domain:          command.String("domain"),
		FromAddress:     command.String("from-address"),
		BaseURL:         command.String("base-url"),
		ApprovalTimeout: command.Duration("approval-timeout"),
		GoogleSubject:   command.String("google-subject"),
		SlackBotToken:   command.String("slack-bot-token"),
		ResendAPIKey:    command.String("resend-api-key"),
		ApprovalSecret:  command.String("approval-secret"),
	}, p, eventBus)
	if err != nil {
		return err
	}

	opts := []workflow.Option{}

	if os.Getenv("OTEL_SDK_DISABLED") != "true" {
		tracer, err := otelhelper.NewTracer(ctx, "cockpit-worker")
		if err != nil {
			logger.WarnContext(ctx, "Tracing disabled", "error", err)
		} else {
			opts = append(opts, workflow.WithTracer(tracer))
		}
	}

	runner := workflow.NewRunner(logger, runs, opts...)

	for _, def := range workflows.All(services) {
		if err := runner.Register(def); err != nil {
			return err
		}
	}

	reconciler := NewReconciler(logger, p.UserRepository(), eventBus, command.String("reconcile-schedule"))
	if err := reconciler.Start(ctx); err != nil {
		return err
	}

	defer reconciler.Stop()

	return NewWorkerManager(workerID, runner, eventBus, logger).Start(ctx)
}
