// Package workflows contains the provisioning workflow definitions: account
// onboarding, group creation, Slack member intake, approval-gated test
// provisioning and directory reconciliation.
package workflows

import (
	"time"

	"github.com/start-berlin/cockpit/pkg/eventbus"
	"github.com/start-berlin/cockpit/pkg/persistence"
	"github.com/start-berlin/cockpit/pkg/providers"
	"github.com/start-berlin/cockpit/pkg/token"
	"github.com/start-berlin/cockpit/pkg/workflow"
)

// Config carries the deployment-specific knobs the workflows need.
type Config struct {
	// Domain is the company email domain, e.g. "start-berlin.com".
	Domain string

	// FromAddress is the sender for all transactional email.
	FromAddress string

	// BaseURL is the public origin of the Cockpit API, used to build
	// approval links.
	BaseURL string

	// ApprovalTimeout bounds how long an approval-gated run stays
	// suspended. Zero means the one hour default.
	ApprovalTimeout time.Duration
}

func (c Config) approvalTimeout() time.Duration {
	if c.ApprovalTimeout > 0 {
		return c.ApprovalTimeout
	}

	return time.Hour
}

// Services bundles the adapters the workflow handlers call. Any of the
// external providers may be nil, in which case the steps that need them fail
// and retry until the adapter is configured.
type Services struct {
	Persistence persistence.Persistence
	Identity    providers.IdentityProvider
	Messenger   providers.Messenger
	Mailer      providers.EmailSender
	Publisher   eventbus.EventPublisher
	Tokens      *token.Signer
	Config      Config
}

// All returns every workflow definition wired against the given services.
func All(services *Services) []*workflow.Definition {
	return []*workflow.Definition{
		OnboardNewUser(services),
		CreateGroup(services),
		SlackUserJoined(services),
		ApprovalWorkflow(services),
		SyncUserAccounts(services),
	}
}
