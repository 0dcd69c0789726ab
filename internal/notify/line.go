package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

var ErrNoAccessToken = errors.New("notify: LINE access token is not configured")

// LineClient talks to the LINE Messaging API: pushes for status changes,
// replies and profile lookups for the chat webhook.
type LineClient struct {
	api   *messaging_api.MessagingApiAPI
	token string
}

func NewLineClient(baseURL, token string, hc *http.Client) (*LineClient, error) {
	const op = "notify.NewLineClient"

	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}

	opts := []messaging_api.MessagingApiAPIOption{messaging_api.WithHTTPClient(hc)}
	if baseURL != "" {
		opts = append(opts, messaging_api.WithEndpoint(strings.TrimRight(baseURL, "/")))
	}

	api, err := messaging_api.NewMessagingApiAPI(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &LineClient{api: api, token: token}, nil
}

func textMessages(texts []string) []messaging_api.MessageInterface {
	out := make([]messaging_api.MessageInterface, 0, len(texts))
	for _, t := range texts {
		out = append(out, messaging_api.TextMessage{Text: t})
	}
	return out
}

func (c *LineClient) Send(ctx context.Context, m Message) error {
	const op = "notify.LineClient.Send"

	if c.token == "" {
		return fmt.Errorf("%s:%w", op, ErrNoAccessToken)
	}

	if _, err := c.api.WithContext(ctx).PushMessage(&messaging_api.PushMessageRequest{
		To:       m.To,
		Messages: textMessages([]string{m.Text}),
	}, ""); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Reply answers a webhook event. Reply tokens are single use and expire
// shortly after the event is delivered.
func (c *LineClient) Reply(ctx context.Context, replyToken string, texts ...string) error {
	const op = "notify.LineClient.Reply"

	if c.token == "" {
		return fmt.Errorf("%s:%w", op, ErrNoAccessToken)
	}

	if _, err := c.api.WithContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   textMessages(texts),
	}); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (c *LineClient) DisplayName(ctx context.Context, lineUserID string) (string, error) {
	const op = "notify.LineClient.DisplayName"

	if c.token == "" {
		return "", fmt.Errorf("%s:%w", op, ErrNoAccessToken)
	}

	profile, err := c.api.WithContext(ctx).GetProfile(lineUserID)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return profile.DisplayName, nil
}
