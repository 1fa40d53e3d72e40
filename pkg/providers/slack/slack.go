// Package slack adapts the Slack Web API to the messenger contract.
package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
	"github.com/start-berlin/cockpit/pkg/providers"
)

// Client is the subset of the Slack Web API the workflows use. slack-go's
// *slack.Client satisfies it.
type Client interface {
	CreateConversationContext(ctx context.Context, params slackapi.CreateConversationParams) (*slackapi.Channel, error)
	GetUserProfileContext(ctx context.Context, params *slackapi.GetUserProfileParameters) (*slackapi.UserProfile, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Messenger implements providers.Messenger on the Slack Web API.
type Messenger struct {
	client Client
}

func NewMessenger(botToken string) *Messenger {
	return &Messenger{client: slackapi.New(botToken)}
}

func NewMessengerWithClient(client Client) *Messenger {
	return &Messenger{client: client}
}

func (m *Messenger) CreatePrivateChannel(ctx context.Context, name string) (string, error) {
	channel, err := m.client.CreateConversationContext(ctx, slackapi.CreateConversationParams{
		ChannelName: name,
		IsPrivate:   true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create Slack channel %s: %w", name, err)
	}

	return channel.ID, nil
}

func (m *Messenger) GetUserProfile(ctx context.Context, userID string) (*providers.Profile, error) {
	profile, err := m.client.GetUserProfileContext(ctx, &slackapi.GetUserProfileParameters{
		UserID: userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find Slack user %s: %w", userID, err)
	}

	return &providers.Profile{Email: profile.Email}, nil
}

func (m *Messenger) PostMessage(ctx context.Context, channelOrUserID string, message providers.Message) error {
	blocks := make([]slackapi.Block, 0, len(message.Sections)+1)

	for _, section := range message.Sections {
		blocks = append(blocks, slackapi.NewSectionBlock(
			slackapi.NewTextBlockObject(slackapi.MarkdownType, section, false, false),
			nil, nil,
		))
	}

	if message.Context != "" {
		blocks = append(blocks, slackapi.NewContextBlock("",
			slackapi.NewTextBlockObject(slackapi.PlainTextType, message.Context, true, false),
		))
	}

	_, _, err := m.client.PostMessageContext(ctx, channelOrUserID, slackapi.MsgOptionBlocks(blocks...))
	if err != nil {
		return fmt.Errorf("failed to post Slack message: %w", err)
	}

	return nil
}
