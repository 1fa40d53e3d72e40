package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/start-berlin/cockpit/pkg/eventbus"
	"github.com/start-berlin/cockpit/pkg/persistence"
	"github.com/start-berlin/cockpit/pkg/providers/google"
	"github.com/start-berlin/cockpit/pkg/providers/resend"
	"github.com/start-berlin/cockpit/pkg/providers/slack"
	"github.com/start-berlin/cockpit/pkg/token"
	"github.com/start-berlin/cockpit/pkg/workflows"
)

// ServicesConfig carries the provider credentials and workflow knobs the
// worker needs.
type ServicesConfig struct {
	Domain          string
	FromAddress     string
	BaseURL         string
	ApprovalTimeout time.Duration

	GoogleSubject  string
	SlackBotToken  string
	ResendAPIKey   string
	ApprovalSecret string
}

// NewServices assembles the workflow service bundle from its configuration.
func NewServices(
	ctx context.Context,
	cfg ServicesConfig,
	p persistence.Persistence,
	publisher eventbus.EventPublisher,
) (*workflows.Services, error) {
	identity, err := google.NewDirectoryProvider(ctx, cfg.GoogleSubject)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace directory provider: %w", err)
	}

	return &workflows.Services{
		Persistence: p,
		Identity:    identity,
		Messenger:   slack.NewMessenger(cfg.SlackBotToken),
		Mailer:      resend.NewMailer(cfg.ResendAPIKey),
		Publisher:   publisher,
		Tokens:      token.NewSigner(cfg.ApprovalSecret),
		Config: workflows.Config{
			Domain:          cfg.Domain,
			FromAddress:     cfg.FromAddress,
			BaseURL:         cfg.BaseURL,
			ApprovalTimeout: cfg.ApprovalTimeout,
		},
	}, nil
}
