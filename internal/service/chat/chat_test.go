package chat_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/repository"
	"github.com/kirinyoku/washq/internal/service/booking/bookingtest"
	"github.com/kirinyoku/washq/internal/service/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type users struct {
	byLine map[string]uuid.UUID
	names  map[string]string
}

func (u *users) UpsertLineUser(_ context.Context, lineUserID, name string) (uuid.UUID, error) {
	id, ok := u.byLine[lineUserID]
	if !ok {
		id = uuid.New()
		u.byLine[lineUserID] = id
	}
	if name != "" {
		u.names[lineUserID] = name
	}
	return id, nil
}

func (u *users) FindByLineUserID(_ context.Context, lineUserID string) (uuid.UUID, error) {
	id, ok := u.byLine[lineUserID]
	if !ok {
		return uuid.Nil, repository.ErrNotFound
	}
	return id, nil
}

type reply struct {
	token string
	texts []string
}

type line struct {
	replies    []reply
	profileErr error
}

func (l *line) Reply(_ context.Context, token string, texts ...string) error {
	l.replies = append(l.replies, reply{token: token, texts: texts})
	return nil
}

func (l *line) DisplayName(context.Context, string) (string, error) {
	if l.profileErr != nil {
		return "", l.profileErr
	}
	return "Somchai", nil
}

type env struct {
	users    *users
	bookings *bookingtest.Bookings
	line     *line
	svc      *chat.Service
}

func newEnv() *env {
	e := &env{
		users:    &users{byLine: map[string]uuid.UUID{}, names: map[string]string{}},
		bookings: bookingtest.NewBookings(),
		line:     &line{},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e.svc = chat.New(e.users, e.bookings, e.line, time.UTC, log, chat.Config{BookingURL: "https://liff.line.me/wash"})
	return e
}

func TestFollowLinksUserAndWelcomes(t *testing.T) {
	e := newEnv()

	require.NoError(t, e.svc.Follow(context.Background(), "U1", "rt-1"))

	assert.Contains(t, e.users.byLine, "U1")
	assert.Equal(t, "Somchai", e.users.names["U1"])
	require.Len(t, e.line.replies, 1)
	assert.Equal(t, "rt-1", e.line.replies[0].token)
	require.Len(t, e.line.replies[0].texts, 2)
	assert.Contains(t, e.line.replies[0].texts[1], "https://liff.line.me/wash")
}

func TestFollowWithoutProfileStillLinks(t *testing.T) {
	e := newEnv()
	e.line.profileErr = errors.New("profile unavailable")

	require.NoError(t, e.svc.Follow(context.Background(), "U2", ""))

	assert.Contains(t, e.users.byLine, "U2")
	assert.Empty(t, e.users.names)
	assert.Empty(t, e.line.replies)

	assert.ErrorIs(t, e.svc.Follow(context.Background(), "", "rt"), domain.ErrValidation)
}

func TestStatusCommand(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	require.NoError(t, e.svc.Text(ctx, "U1", "rt-1", " Status "))
	require.Len(t, e.line.replies, 1)
	assert.Contains(t, e.line.replies[0].texts[0], "ยังไม่มีการจองคิว")

	userID, err := e.users.UpsertLineUser(ctx, "U1", "")
	require.NoError(t, err)

	b := domain.Booking{
		ID:        uuid.New(),
		UserID:    userID,
		SlotStart: time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC),
		Status:    domain.StatusInWash,
		CreatedAt: time.Now(),
	}
	e.bookings.Put(b)

	require.NoError(t, e.svc.Text(ctx, "U1", "rt-2", "เช็คสถานะ"))
	require.Len(t, e.line.replies, 2)
	text := e.line.replies[1].texts[0]
	assert.Contains(t, text, b.ID.String())
	assert.Contains(t, text, "กำลังล้างรถ")
	assert.Contains(t, text, "11/03/2025 10:00")
}

func TestOtherCommands(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	require.NoError(t, e.svc.Text(ctx, "U1", "rt-1", "help"))
	require.NoError(t, e.svc.Text(ctx, "U1", "rt-2", "จองคิว"))
	require.NoError(t, e.svc.Text(ctx, "U1", "rt-3", "hello there"))

	require.Len(t, e.line.replies, 3)
	assert.True(t, strings.HasPrefix(e.line.replies[0].texts[0], "📖"))
	assert.Len(t, e.line.replies[1].texts, 2)
	assert.Contains(t, e.line.replies[2].texts[0], "สวัสดี")
}
