// ABOUTME: teamChat adapts one workspace's Slack Web API client to dispatch.Chat
// ABOUTME: Threads are addressed by timestamp; an empty thread posts to the channel

package bot

import (
	"context"

	"github.com/slack-go/slack"

	"github.com/2389/potpie-slack/internal/dispatch"
)

type teamChat struct {
	api slackAPI
}

func (c *teamChat) PostMessage(ctx context.Context, channelID, threadTS, text string) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, ts, err := c.api.PostMessageContext(ctx, channelID, opts...)
	return ts, err
}

func (c *teamChat) DeleteMessage(ctx context.Context, channelID, ts string) error {
	_, _, err := c.api.DeleteMessageContext(ctx, channelID, ts)
	return err
}

func (c *teamChat) AddReaction(ctx context.Context, channelID, ts, name string) error {
	return c.api.AddReactionContext(ctx, name, slack.NewRefToMessage(channelID, ts))
}

var _ dispatch.Chat = (*teamChat)(nil)
