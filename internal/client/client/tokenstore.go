package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/librarykeeper/internal/client/models"
	"github.com/dmitrijs2005/librarykeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/librarykeeper/internal/dbx"
)

// TokenStore is where the client keeps its credentials between runs.
// Tokens returns (nil, nil) when nothing is stored.
type TokenStore interface {
	Tokens(ctx context.Context) (*models.TokenPair, error)
	SaveTokens(ctx context.Context, pair *models.TokenPair) error
	Clear(ctx context.Context) error
}

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyUser         = "user"
)

// SQLiteTokenStore keeps the session in the metadata table. The two tokens
// are always written together in one transaction.
type SQLiteTokenStore struct {
	db *sql.DB
}

func NewSQLiteTokenStore(db *sql.DB) *SQLiteTokenStore {
	return &SQLiteTokenStore{db: db}
}

func (s *SQLiteTokenStore) Tokens(ctx context.Context) (*models.TokenPair, error) {
	m, err := metadata.NewSQLiteRepository(s.db).GetMany(ctx, keyAccessToken, keyRefreshToken)
	if err != nil {
		return nil, err
	}
	access, refresh := m[keyAccessToken], m[keyRefreshToken]
	if len(access) == 0 && len(refresh) == 0 {
		return nil, nil
	}
	return &models.TokenPair{AccessToken: string(access), RefreshToken: string(refresh)}, nil
}

func (s *SQLiteTokenStore) SaveTokens(ctx context.Context, pair *models.TokenPair) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return setTokens(ctx, metadata.NewSQLiteRepository(tx), pair)
	})
}

// SaveSession stores the tokens and the profile of a freshly
// authenticated user.
func (s *SQLiteTokenStore) SaveSession(ctx context.Context, session *models.Session) error {
	user, err := json.Marshal(session.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := setTokens(ctx, repo, session.Tokens); err != nil {
			return err
		}
		return repo.Set(ctx, keyUser, user)
	})
}

// User returns the cached profile, or nil if none is stored.
func (s *SQLiteTokenStore) User(ctx context.Context) (*models.User, error) {
	raw, err := metadata.NewSQLiteRepository(s.db).Get(ctx, keyUser)
	if err != nil || raw == nil {
		return nil, err
	}

	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

func (s *SQLiteTokenStore) SaveUser(ctx context.Context, u *models.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return metadata.NewSQLiteRepository(s.db).Set(ctx, keyUser, raw)
}

// Clear forgets the session.
func (s *SQLiteTokenStore) Clear(ctx context.Context) error {
	return metadata.NewSQLiteRepository(s.db).Delete(ctx, keyAccessToken, keyRefreshToken, keyUser)
}

func setTokens(ctx context.Context, repo metadata.Repository, pair *models.TokenPair) error {
	if pair == nil {
		return fmt.Errorf("save tokens: empty token pair")
	}
	if err := repo.Set(ctx, keyAccessToken, []byte(pair.AccessToken)); err != nil {
		return err
	}
	return repo.Set(ctx, keyRefreshToken, []byte(pair.RefreshToken))
}
