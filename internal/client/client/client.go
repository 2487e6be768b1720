package client

import (
	"context"

	"github.com/dmitrijs2005/librarykeeper/internal/client/models"
)

// Client is the librarykeeper API as seen by the client services.
// *APIClient implements it.
type Client interface {
	Register(ctx context.Context, username, email, password string) (*models.Session, error)
	Login(ctx context.Context, username, password string) (*models.Session, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context) (*models.User, error)
	Ping(ctx context.Context) error
}

var _ Client = (*APIClient)(nil)
