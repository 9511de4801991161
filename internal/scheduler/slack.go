package scheduler

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackNotifier posts job outcome headers to a Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier builds a notifier posting to the given channel.
func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{client: slack.New(token), channel: channel}
}

// Notify posts the event header as one message.
func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(formatEventHeader(event), false))
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}

	return nil
}
