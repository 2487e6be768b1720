// Package services contains server-side business logic. AuthService is the
// token lifecycle manager: it authenticates accounts, issues access and
// refresh tokens, rotates refresh tokens and revokes them.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/librarykeeper/internal/common"
	"github.com/dmitrijs2005/librarykeeper/internal/dbx"
	"github.com/dmitrijs2005/librarykeeper/internal/server/auth"
	"github.com/dmitrijs2005/librarykeeper/internal/server/models"
	"github.com/dmitrijs2005/librarykeeper/internal/server/repositories/repomanager"
)

// TokenCodec signs and verifies tokens. *auth.Codec implements it.
type TokenCodec interface {
	SignAccess(p auth.AccessPayload) (string, error)
	SignRefresh(p auth.RefreshPayload) (string, error)
	VerifyRefresh(token string) (*auth.RefreshPayload, error)
	RefreshTTL() time.Duration
}

// PasswordHasher hashes and checks passwords. Compare must return
// common.ErrInvalidCredentials on mismatch.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// AuthResult is returned by Login and Register.
type AuthResult struct {
	User   *models.PublicUser `json:"user"`
	Tokens *models.TokenPair  `json:"tokens"`
}

type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       TokenCodec
	hasher      PasswordHasher

	now   func() time.Time
	newID func() string

	decoyOnce sync.Once
	decoyHash string
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, codec TokenCodec, hasher PasswordHasher) *AuthService {
	return &AuthService{
		db:          db,
		repomanager: m,
		codec:       codec,
		hasher:      hasher,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Login checks credentials and issues a token pair. Unknown usernames and
// wrong passwords both yield common.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if errors.Is(err, common.ErrNotFound) {
		s.compareDecoy(password)
		return nil, common.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := s.hasher.Compare(user.Password, password); err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			return nil, err
		}
		return nil, fmt.Errorf("check password: %w", err)
	}

	pair, err := s.generateTokenPair(ctx, s.db, user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user.Public(), Tokens: pair}, nil
}

// Register creates an account with role "user" and logs it in. The
// duplicate checks are advisory; the unique constraints decide races and
// surface as the same duplicate errors.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	users := s.repomanager.Users(s.db)

	if err := s.ensureAbsent(ctx, users.GetByUsername, username, common.ErrDuplicateUsername); err != nil {
		return nil, err
	}
	if err := s.ensureAbsent(ctx, users.GetByEmail, email, common.ErrDuplicateEmail); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	var result *AuthResult
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).Create(ctx, &models.User{
			Username: username,
			Email:    email,
			Password: hash,
			Role:     common.RoleUser,
		})
		if err != nil {
			return err
		}

		pair, err := s.generateTokenPair(ctx, tx, user)
		if err != nil {
			return err
		}

		result = &AuthResult{User: user.Public(), Tokens: pair}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateUsername) || errors.Is(err, common.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return result, nil
}

// Refresh rotates refreshToken: the presented token is consumed and a new
// pair is issued in the same transaction. A token can be rotated once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	payload, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, common.ErrInvalidRefreshToken
	}

	var pair *models.TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tokens := s.repomanager.RefreshTokens(tx)

		record, err := tokens.FindActive(ctx, payload.TokenID, refreshToken)
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrRevokedOrUnknownToken
		}
		if err != nil {
			return fmt.Errorf("find refresh token: %w", err)
		}

		user, err := s.repomanager.Users(tx).GetByID(ctx, record.UserID)
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrUserGone
		}
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}

		consumed, err := tokens.Consume(ctx, record.ID, refreshToken)
		if err != nil {
			return fmt.Errorf("consume refresh token: %w", err)
		}
		if !consumed {
			return common.ErrRevokedOrUnknownToken
		}

		pair, err = s.generateTokenPair(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// Revoke marks refreshToken as revoked. Unknown tokens are ignored.
func (s *AuthService) Revoke(ctx context.Context, refreshToken string) error {
	if err := s.repomanager.RefreshTokens(s.db).RevokeByToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Me returns the public projection of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.PublicUser, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrUserGone
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user.Public(), nil
}

// generateTokenPair is the only place refresh-token records are created.
func (s *AuthService) generateTokenPair(ctx context.Context, db dbx.DBTX, user *models.User) (*models.TokenPair, error) {
	access, err := s.codec.SignAccess(auth.AccessPayload{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
	if err != nil {
		return nil, err
	}

	tokenID := s.newID()
	refresh, err := s.codec.SignRefresh(auth.RefreshPayload{UserID: user.ID, TokenID: tokenID})
	if err != nil {
		return nil, err
	}

	err = s.repomanager.RefreshTokens(db).Create(ctx, &models.RefreshToken{
		ID:        tokenID,
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: s.now().Add(s.codec.RefreshTTL()),
	})
	if err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) ensureAbsent(ctx context.Context, get func(context.Context, string) (*models.User, error), value string, dup error) error {
	_, err := get(ctx, value)
	switch {
	case err == nil:
		return dup
	case errors.Is(err, common.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check existing user: %w", err)
	}
}

// compareDecoy spends roughly the same time as a real password check so
// unknown usernames are not distinguishable by latency.
func (s *AuthService) compareDecoy(password string) {
	s.decoyOnce.Do(func() {
		s.decoyHash, _ = s.hasher.Hash("decoy-password-for-unknown-users")
	})
	if s.decoyHash != "" {
		_ = s.hasher.Compare(s.decoyHash, password)
	}
}
