package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/librarykeeper/internal/common"
	"github.com/dmitrijs2005/librarykeeper/internal/dbx"
	"github.com/dmitrijs2005/librarykeeper/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, token.ID, token.UserID, token.Token, token.ExpiresAt); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindActive(ctx context.Context, id, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, revoked, created_at
		FROM refresh_tokens
		WHERE id = $1 AND token = $2 AND revoked = FALSE AND expires_at > NOW()
	`
	row := &tokenRow{}
	if err := r.db.QueryRowContext(ctx, query, id, token).Scan(row.dest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return toRefreshToken(row)
}

func (r *PostgresRepository) Consume(ctx context.Context, id, token string) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE id = $1 AND token = $2 AND revoked = FALSE AND expires_at > NOW()
	`
	res, err := r.db.ExecContext(ctx, query, id, token)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) RevokeByToken(ctx context.Context, token string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE token = $1
	`
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

type tokenRow struct {
	ID        sql.NullString
	UserID    sql.NullString
	Token     sql.NullString
	ExpiresAt sql.NullTime
	Revoked   sql.NullBool
	CreatedAt sql.NullTime
}

func (r *tokenRow) dest() []any {
	return []any{&r.ID, &r.UserID, &r.Token, &r.ExpiresAt, &r.Revoked, &r.CreatedAt}
}

func toRefreshToken(r *tokenRow) (*models.RefreshToken, error) {
	switch {
	case !r.ID.Valid:
		return nil, fmt.Errorf("%w: refresh_tokens.id", common.ErrMalformedRow)
	case !r.UserID.Valid:
		return nil, fmt.Errorf("%w: refresh_tokens.user_id", common.ErrMalformedRow)
	case !r.Token.Valid:
		return nil, fmt.Errorf("%w: refresh_tokens.token", common.ErrMalformedRow)
	case !r.ExpiresAt.Valid:
		return nil, fmt.Errorf("%w: refresh_tokens.expires_at", common.ErrMalformedRow)
	case !r.Revoked.Valid:
		return nil, fmt.Errorf("%w: refresh_tokens.revoked", common.ErrMalformedRow)
	case !r.CreatedAt.Valid:
		return nil, fmt.Errorf("%w: refresh_tokens.created_at", common.ErrMalformedRow)
	}

	return &models.RefreshToken{
		ID:        r.ID.String,
		UserID:    r.UserID.String,
		Token:     r.Token.String,
		ExpiresAt: r.ExpiresAt.Time,
		Revoked:   r.Revoked.Bool,
		CreatedAt: r.CreatedAt.Time,
	}, nil
}
