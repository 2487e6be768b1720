// Package users declares the account repository contract and its
// PostgreSQL implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/librarykeeper/internal/server/models"
)

// Repository stores user accounts. Lookups are exact-match; no case folding
// is applied to usernames or emails. Missing rows are reported as
// common.ErrNotFound.
type Repository interface {
	// Create inserts user and returns it with ID and timestamps filled in.
	// A unique-constraint violation is reported as common.ErrDuplicateUsername
	// or common.ErrDuplicateEmail.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}
