package slack_test

import (
	"context"
	"errors"
	"testing"

	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/start-berlin/cockpit/pkg/providers"
	"github.com/start-berlin/cockpit/pkg/providers/slack"
)

type fakeClient struct {
	createdChannels []string
	profileEmail    string
	profileErr      error
	posted          []string
	postOptions     int
}

func (f *fakeClient) CreateConversationContext(_ context.Context, params slackapi.CreateConversationParams) (*slackapi.Channel, error) {
	f.createdChannels = append(f.createdChannels, params.ChannelName)

	channel := &slackapi.Channel{}
	channel.ID = "C" + params.ChannelName

	return channel, nil
}

func (f *fakeClient) GetUserProfileContext(_ context.Context, _ *slackapi.GetUserProfileParameters) (*slackapi.UserProfile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}

	return &slackapi.UserProfile{Email: f.profileEmail}, nil
}

func (f *fakeClient) PostMessageContext(_ context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	f.posted = append(f.posted, channelID)
	f.postOptions = len(options)

	return channelID, "", nil
}

func TestCreatePrivateChannel(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	messenger := slack.NewMessengerWithClient(client)

	id, err := messenger.CreatePrivateChannel(context.Background(), "tech-team")
	require.NoError(t, err)
	assert.Equal(t, "Ctech-team", id)
	assert.Equal(t, []string{"tech-team"}, client.createdChannels)
}

func TestGetUserProfile(t *testing.T) {
	t.Parallel()

	client := &fakeClient{profileEmail: "jane.doe@start-berlin.com"}
	messenger := slack.NewMessengerWithClient(client)

	profile, err := messenger.GetUserProfile(context.Background(), "U123")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@start-berlin.com", profile.Email)
}

func TestGetUserProfileError(t *testing.T) {
	t.Parallel()

	client := &fakeClient{profileErr: errors.New("users_not_found")}
	messenger := slack.NewMessengerWithClient(client)

	_, err := messenger.GetUserProfile(context.Background(), "U404")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "U404")
}

func TestPostMessage(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	messenger := slack.NewMessengerWithClient(client)

	err := messenger.PostMessage(context.Background(), "U123", providers.Message{
		Sections: []string{"*Welcome!*"},
		Context:  "Sent automatically",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"U123"}, client.posted)
	assert.Equal(t, 1, client.postOptions)
}
