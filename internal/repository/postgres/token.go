package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medisync/clinic-api/internal/repository"
)

type tokenRepository struct {
	BaseRepository
}

func NewTokenRepository(base BaseRepository) repository.TokenRepository {
	return &tokenRepository{base}
}

func (r *tokenRepository) StoreResetToken(ctx context.Context, userID uuid.UUID, jti string, expiry time.Time) error {
	return r.WithTx(ctx, "token.store_reset", func(tx *sqlx.Tx) error {
		// One outstanding reset grant per user; a new request replaces
		// the previous token.
		query := `
			INSERT INTO reset_tokens (user_id, jti, expires_at, created_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (user_id) DO UPDATE
			SET jti = $2, expires_at = $3, used_at = NULL, created_at = NOW()
		`
		_, err := tx.ExecContext(ctx, query, userID, jti, expiry)
		return err
	})
}

// ConsumeResetToken marks the grant used in the same statement that
// reads it, so a replayed token loses the race.
func (r *tokenRepository) ConsumeResetToken(ctx context.Context, jti string) (uuid.UUID, error) {
	query := `
		UPDATE reset_tokens
		SET used_at = NOW()
		WHERE jti = $1
		AND expires_at > NOW()
		AND used_at IS NULL
		RETURNING user_id
	`

	var userID uuid.UUID
	if err := r.get(ctx, "token.consume_reset", &userID, query, jti); err != nil {
		return uuid.Nil, fmt.Errorf("invalid, expired or used token")
	}
	return userID, nil
}
