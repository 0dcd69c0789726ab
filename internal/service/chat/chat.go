// Package chat answers the customer side of the LINE official account:
// follow events link the LINE user to a customer record, text commands
// report booking status.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/notify"
	"github.com/kirinyoku/washq/internal/repository"
)

type Users interface {
	UpsertLineUser(ctx context.Context, lineUserID, displayName string) (uuid.UUID, error)
	FindByLineUserID(ctx context.Context, lineUserID string) (uuid.UUID, error)
}

type Bookings interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error)
}

// Line is the subset of the Messaging API the chat needs.
type Line interface {
	Reply(ctx context.Context, replyToken string, texts ...string) error
	DisplayName(ctx context.Context, lineUserID string) (string, error)
}

type Config struct {
	// BookingURL is the LIFF page customers book through.
	BookingURL string
}

const (
	textWelcome = "🎉 ยินดีต้อนรับสู่บริการจองคิวล้างรถ!\n\n✨ บริการของเรา:\n• ล้างรถ\n• รับ-ส่งถึงที่\n• จองคิวล่วงหน้า\n\nพิมพ์ \"จองคิว\" เพื่อเริ่มใช้งาน"
	textBook    = "🚗 ยินดีต้อนรับสู่บริการจองคิวล้างรถ!"
	textNoQueue = "📋 คุณยังไม่มีการจองคิว\n\nพิมพ์ \"จองคิว\" เพื่อเริ่มจองคิว"
	textHelp    = "📖 คำสั่งที่ใช้ได้:\n\n• \"จองคิว\" - เริ่มจองคิวล้างรถ\n• \"เช็คสถานะ\" - ดูสถานะการจอง\n• \"ช่วยเหลือ\" - แสดงคำสั่งนี้\n\nหรือติดต่อเราโดยตรงได้เลย!"
	textDefault = "สวัสดีครับ! 👋\n\nพิมพ์ \"จองคิว\" เพื่อจองคิวล้างรถ\nพิมพ์ \"เช็คสถานะ\" เพื่อดูสถานะการจอง\nพิมพ์ \"ช่วยเหลือ\" เพื่อดูคำสั่งที่ใช้ได้"
)

type command int

const (
	cmdUnknown command = iota
	cmdBook
	cmdStatus
	cmdHelp
)

var commands = map[string]command{
	"จองคิว":    cmdBook,
	"book":      cmdBook,
	"booking":   cmdBook,
	"เช็คสถานะ": cmdStatus,
	"สถานะ":     cmdStatus,
	"status":    cmdStatus,
	"help":      cmdHelp,
	"ช่วยเหลือ": cmdHelp,
	"คำสั่ง":    cmdHelp,
}

func parseCommand(text string) command {
	return commands[strings.ToLower(strings.TrimSpace(text))]
}

type Service struct {
	users    Users
	bookings Bookings
	line     Line
	loc      *time.Location
	log      *slog.Logger
	cfg      Config
}

func New(users Users, bookings Bookings, line Line, loc *time.Location, log *slog.Logger, cfg Config) *Service {
	if loc == nil {
		loc = time.UTC
	}

	if log == nil {
		log = slog.Default()
	}

	return &Service{
		users:    users,
		bookings: bookings,
		line:     line,
		loc:      loc,
		log:      log.With("component", "chat"),
		cfg:      cfg,
	}
}

// Follow links the LINE user to a customer record and sends the welcome.
// A failed profile lookup only loses the display name.
func (s *Service) Follow(ctx context.Context, lineUserID, replyToken string) error {
	const op = "service.chat.Follow"

	if lineUserID == "" {
		return fmt.Errorf("%s:%w", op, domain.Invalidf("line user id is required"))
	}

	name, err := s.line.DisplayName(ctx, lineUserID)
	if err != nil {
		s.log.WarnContext(ctx, "line profile lookup failed", "line_user_id", lineUserID, "err", err)
	}

	userID, err := s.users.UpsertLineUser(ctx, lineUserID, name)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	s.log.InfoContext(ctx, "line user followed", "line_user_id", lineUserID, "user_id", userID)

	return s.reply(ctx, op, replyToken, textWelcome, s.bookingLink())
}

func (s *Service) Unfollow(ctx context.Context, lineUserID string) {
	s.log.InfoContext(ctx, "line user unfollowed", "line_user_id", lineUserID)
}

// Text answers a chat message. Unknown text gets the command overview.
func (s *Service) Text(ctx context.Context, lineUserID, replyToken, text string) error {
	const op = "service.chat.Text"

	switch parseCommand(text) {
	case cmdBook:
		return s.reply(ctx, op, replyToken, textBook, s.bookingLink())
	case cmdHelp:
		return s.reply(ctx, op, replyToken, textHelp)
	case cmdStatus:
		answer, err := s.latestStatus(ctx, lineUserID)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		return s.reply(ctx, op, replyToken, answer)
	default:
		return s.reply(ctx, op, replyToken, textDefault)
	}
}

func (s *Service) latestStatus(ctx context.Context, lineUserID string) (string, error) {
	userID, err := s.users.FindByLineUserID(ctx, lineUserID)
	if errors.Is(err, repository.ErrNotFound) {
		return textNoQueue, nil
	}
	if err != nil {
		return "", err
	}

	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return "", err
	}

	if len(bookings) == 0 {
		return textNoQueue, nil
	}

	return notify.LatestStatus(bookings[0], s.loc), nil
}

func (s *Service) bookingLink() string {
	if s.cfg.BookingURL == "" {
		return ""
	}
	return "👉 จองคิวได้ที่ " + s.cfg.BookingURL
}

func (s *Service) reply(ctx context.Context, op, replyToken string, texts ...string) error {
	if replyToken == "" {
		return nil
	}

	msgs := make([]string, 0, len(texts))
	for _, t := range texts {
		if t != "" {
			msgs = append(msgs, t)
		}
	}

	if err := s.line.Reply(ctx, replyToken, msgs...); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
