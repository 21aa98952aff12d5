// ABOUTME: Slack-backed swarm service
// ABOUTME: Thin wrapper over the Slack conversations API

package swarm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

// SlackService implements Service against the Slack conversations API.
type SlackService struct {
	api    *slack.Client
	logger *slog.Logger
}

// NewSlackService creates a swarm service using the given bot token.
func NewSlackService(botToken string, logger *slog.Logger) *SlackService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackService{
		api:    slack.New(botToken),
		logger: logger.With("component", "swarm-slack"),
	}
}

// CreateChannel opens a public channel and sets its topic.
func (s *SlackService) CreateChannel(ctx context.Context, name, topic string) (string, error) {
	ch, err := s.api.CreateConversationContext(ctx, slack.CreateConversationParams{
		ChannelName: name,
	})
	if err != nil {
		return "", fmt.Errorf("creating slack channel %q: %w", name, err)
	}

	if topic != "" {
		if _, err := s.api.SetTopicOfConversationContext(ctx, ch.ID, topic); err != nil {
			// Topic is cosmetic; the channel is usable without it.
			s.logger.Warn("setting slack channel topic failed",
				"channel_id", ch.ID, "error", err)
		}
	}

	s.logger.Info("slack swarm channel created", "channel_id", ch.ID, "name", name)
	return ch.ID, nil
}

// PostMessage posts plain text into the channel.
func (s *SlackService) PostMessage(ctx context.Context, channelID, text string) error {
	_, _, err := s.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("posting to slack channel %s: %w", channelID, err)
	}
	return nil
}

// ArchiveChannel archives the channel.
func (s *SlackService) ArchiveChannel(ctx context.Context, channelID string) error {
	if err := s.api.ArchiveConversationContext(ctx, channelID); err != nil {
		return fmt.Errorf("archiving slack channel %s: %w", channelID, err)
	}
	s.logger.Info("slack swarm channel archived", "channel_id", channelID)
	return nil
}
