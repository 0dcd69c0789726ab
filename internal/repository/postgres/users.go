package postgresrepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/repository"
)

type UserRepo struct {
	s *Store
}

// Recipient resolves the LINE user id of a customer. Users without a linked
// LINE account yield repository.ErrNotFound.
func (r *UserRepo) Recipient(ctx context.Context, userID uuid.UUID) (domain.Recipient, error) {
	const op = "postgres.UserRepo.Recipient"

	var line *string
	if err := r.s.handle(ctx).QueryRow(ctx,
		`SELECT line_user_id FROM users WHERE id = $1`, userID,
	).Scan(&line); err != nil {
		return domain.Recipient{}, wrapDBErr(op, err)
	}

	if line == nil || *line == "" {
		return domain.Recipient{}, wrapDBErr(op, repository.ErrNotFound)
	}

	return domain.Recipient{UserID: userID, LineUserID: *line}, nil
}

// UpsertLineUser creates the customer for a LINE user on first contact and
// returns its id. A non-empty display name replaces the stored one.
func (r *UserRepo) UpsertLineUser(ctx context.Context, lineUserID, displayName string) (uuid.UUID, error) {
	const op = "postgres.UserRepo.UpsertLineUser"

	var id uuid.UUID
	if err := r.s.handle(ctx).QueryRow(ctx, `
		INSERT INTO users (line_user_id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (line_user_id) DO UPDATE
		   SET display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), users.display_name)
		RETURNING id`,
		lineUserID, displayName,
	).Scan(&id); err != nil {
		return uuid.Nil, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *UserRepo) FindByLineUserID(ctx context.Context, lineUserID string) (uuid.UUID, error) {
	const op = "postgres.UserRepo.FindByLineUserID"

	var id uuid.UUID
	if err := r.s.handle(ctx).QueryRow(ctx,
		`SELECT id FROM users WHERE line_user_id = $1`, lineUserID,
	).Scan(&id); err != nil {
		return uuid.Nil, wrapDBErr(op, err)
	}

	return id, nil
}
