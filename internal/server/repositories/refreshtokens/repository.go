// Package refreshtokens declares the server-side repository contract for
// refresh-token records and its PostgreSQL implementation.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/librarykeeper/internal/server/models"
)

// Repository stores refresh-token records. Records are only ever flagged
// revoked, never deleted.
type Repository interface {
	// Create stores a new, non-revoked record.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindActive returns the record matching both id and token that is not
	// revoked and not expired, or common.ErrNotFound.
	FindActive(ctx context.Context, id, token string) (*models.RefreshToken, error)

	// Consume atomically flips an active record to revoked. It reports false
	// when no active record matched, which is how a concurrent rotation of
	// the same token loses.
	Consume(ctx context.Context, id, token string) (bool, error)

	// RevokeByToken marks every record carrying token as revoked. Unknown or
	// already revoked tokens are not an error.
	RevokeByToken(ctx context.Context, token string) error
}
