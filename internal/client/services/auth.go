// Package services contains application services for the librarykeeper
// client. This file defines the authentication service: register, login,
// logout, profile lookup and the liveness probe, with the session kept in
// the local store.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/librarykeeper/internal/client/client"
	"github.com/dmitrijs2005/librarykeeper/internal/client/models"
	"github.com/dmitrijs2005/librarykeeper/internal/common"
)

// AuthService defines authentication operations for the CLI.
//
// All methods must honor context cancellation/timeouts. Password slices
// are wiped before the methods return.
type AuthService interface {
	Register(ctx context.Context, username, email string, password []byte) (*models.User, error)
	Login(ctx context.Context, username string, password []byte) (*models.User, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.User, error)
	CurrentUser(ctx context.Context) (*models.User, error)
	Ping(ctx context.Context) error
}

// SessionStore persists the session. *client.SQLiteTokenStore implements it.
type SessionStore interface {
	client.TokenStore
	SaveSession(ctx context.Context, s *models.Session) error
	User(ctx context.Context) (*models.User, error)
	SaveUser(ctx context.Context, u *models.User) error
}

type authService struct {
	client client.Client
	store  SessionStore
}

func NewAuthService(c client.Client, store SessionStore) AuthService {
	return &authService{client: c, store: store}
}

func (a *authService) Register(ctx context.Context, username, email string, password []byte) (*models.User, error) {
	defer common.WipeByteArray(password)

	s, err := a.client.Register(ctx, username, email, string(password))
	if err != nil {
		return nil, fmt.Errorf("register error: %w", err)
	}
	if err := a.store.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("session saving error: %w", err)
	}
	return s.User, nil
}

func (a *authService) Login(ctx context.Context, username string, password []byte) (*models.User, error) {
	defer common.WipeByteArray(password)

	s, err := a.client.Login(ctx, username, string(password))
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}
	if err := a.store.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("session saving error: %w", err)
	}
	return s.User, nil
}

// Logout revokes the stored refresh token on the server and forgets the
// session locally. The local session is cleared even when the server call
// fails; that error is still returned.
func (a *authService) Logout(ctx context.Context) error {
	tokens, err := a.store.Tokens(ctx)
	if err != nil {
		return err
	}
	if tokens == nil {
		return client.ErrNotLoggedIn
	}

	remoteErr := a.client.Logout(ctx, tokens.RefreshToken)
	if errors.Is(remoteErr, client.ErrSessionExpired) {
		remoteErr = nil
	}

	if err := a.store.Clear(ctx); err != nil {
		return errors.Join(remoteErr, err)
	}
	if remoteErr != nil {
		return fmt.Errorf("logout error: %w", remoteErr)
	}
	return nil
}

// Me fetches the profile from the server and refreshes the cached copy.
func (a *authService) Me(ctx context.Context) (*models.User, error) {
	u, err := a.client.Me(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.store.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("profile saving error: %w", err)
	}
	return u, nil
}

// CurrentUser returns the cached profile without contacting the server, or
// nil when there is no session.
func (a *authService) CurrentUser(ctx context.Context) (*models.User, error) {
	tokens, err := a.store.Tokens(ctx)
	if err != nil || tokens == nil {
		return nil, err
	}
	return a.store.User(ctx)
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}
