// Package providers defines the contracts for the external systems the
// provisioning workflows drive. Every call is made from inside a workflow
// step, so implementations must be safe to invoke more than once for the
// same logical operation.
package providers

import (
	"context"
	"errors"
)

// ErrAlreadyExists reports that the external entity was provisioned by an
// earlier run. The onboarding workflow treats it as a success-like outcome
// and suppresses credential delivery.
var ErrAlreadyExists = errors.New("entity already exists")

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// NewUser is the request to create an external identity.
type NewUser struct {
	GivenName           string
	FamilyName          string
	PrimaryEmail        string
	RecoveryEmail       string
	Password            string
	ForcePasswordChange bool
}

// NewGroup is the request to create an external mailing group.
type NewGroup struct {
	Email       string
	Name        string
	Description string
}

// IdentityProvider provisions accounts and groups in the external workspace
// directory.
type IdentityProvider interface {
	CreateUser(ctx context.Context, user NewUser) error
	CreateGroup(ctx context.Context, group NewGroup) error
}

// Profile is the subset of a messaging profile the workflows need.
type Profile struct {
	Email string
}

// Message is a block-structured chat message.
type Message struct {
	Sections []string
	Context  string
}

// Messenger is the chat system: channel provisioning, profile lookups and
// direct messages.
type Messenger interface {
	CreatePrivateChannel(ctx context.Context, name string) (channelID string, err error)
	GetUserProfile(ctx context.Context, userID string) (*Profile, error)
	PostMessage(ctx context.Context, channelOrUserID string, message Message) error
}

// Email is one transactional email, already rendered.
type Email struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// EmailSender delivers transactional email.
type EmailSender interface {
	Send(ctx context.Context, email Email) error
}
