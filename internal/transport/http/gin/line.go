package httpgin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

type LineEvents interface {
	Follow(ctx context.Context, lineUserID, replyToken string) error
	Unfollow(ctx context.Context, lineUserID string)
	Text(ctx context.Context, lineUserID, replyToken, text string) error
}

// LineWebhook receives Messaging API callbacks. Requests whose
// X-Line-Signature does not match the channel secret are rejected.
type LineWebhook struct {
	events LineEvents
	secret string
	log    *slog.Logger
}

func NewLineWebhook(events LineEvents, channelSecret string, log *slog.Logger) *LineWebhook {
	return &LineWebhook{
		events: events,
		secret: channelSecret,
		log:    log.With(slog.String("component", "line_webhook")),
	}
}

// @Summary  LINE Messaging API webhook
// @Param    X-Line-Signature  header  string  true  "HMAC-SHA256 of the body"
// @Success  200
// @Failure  401  {object}  ErrorResponse
// @Router   /webhook/line [post]
func (w *LineWebhook) Handle(c *gin.Context) {
	cb, err := webhook.ParseRequest(w.secret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid signature"})
			return
		}
		badRequest(c, "malformed webhook body")
		return
	}

	ctx := c.Request.Context()

	// LINE redelivers on non-2xx, so event failures are logged, not returned.
	for _, ev := range cb.Events {
		if err := w.dispatch(ctx, ev); err != nil {
			w.log.ErrorContext(ctx, "line event failed", slog.Any("error", err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (w *LineWebhook) dispatch(ctx context.Context, ev webhook.EventInterface) error {
	switch e := ev.(type) {
	case webhook.FollowEvent:
		if uid := userID(e.Source); uid != "" {
			return w.events.Follow(ctx, uid, e.ReplyToken)
		}
	case webhook.UnfollowEvent:
		if uid := userID(e.Source); uid != "" {
			w.events.Unfollow(ctx, uid)
		}
	case webhook.MessageEvent:
		text, ok := e.Message.(webhook.TextMessageContent)
		if !ok {
			return nil
		}
		if uid := userID(e.Source); uid != "" {
			return w.events.Text(ctx, uid, e.ReplyToken, text.Text)
		}
	default:
		w.log.DebugContext(ctx, "line event ignored", slog.String("type", fmt.Sprintf("%T", ev)))
	}
	return nil
}

func userID(src webhook.SourceInterface) string {
	if u, ok := src.(webhook.UserSource); ok {
		return u.UserId
	}
	return ""
}
