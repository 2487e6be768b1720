package users

import (
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/librarykeeper/internal/common"
	"github.com/dmitrijs2005/librarykeeper/internal/server/models"
)

const userColumns = `id, username, email, password, role, created_at, updated_at`

// userRow mirrors a users row as scanned from the driver. Every column is
// nullable here so toUser can reject incomplete rows explicitly.
type userRow struct {
	ID        sql.NullString
	Username  sql.NullString
	Email     sql.NullString
	Password  sql.NullString
	Role      sql.NullString
	CreatedAt sql.NullTime
	UpdatedAt sql.NullTime
}

func (r *userRow) dest() []any {
	return []any{&r.ID, &r.Username, &r.Email, &r.Password, &r.Role, &r.CreatedAt, &r.UpdatedAt}
}

func toUser(r *userRow) (*models.User, error) {
	switch {
	case !r.ID.Valid || r.ID.String == "":
		return nil, fmt.Errorf("%w: users.id", common.ErrMalformedRow)
	case !r.Username.Valid:
		return nil, fmt.Errorf("%w: users.username", common.ErrMalformedRow)
	case !r.Email.Valid:
		return nil, fmt.Errorf("%w: users.email", common.ErrMalformedRow)
	case !r.Password.Valid:
		return nil, fmt.Errorf("%w: users.password", common.ErrMalformedRow)
	case !r.Role.Valid:
		return nil, fmt.Errorf("%w: users.role", common.ErrMalformedRow)
	case r.Role.String != common.RoleAdmin && r.Role.String != common.RoleUser:
		return nil, fmt.Errorf("%w: users.role %q", common.ErrMalformedRow, r.Role.String)
	case !r.CreatedAt.Valid:
		return nil, fmt.Errorf("%w: users.created_at", common.ErrMalformedRow)
	case !r.UpdatedAt.Valid:
		return nil, fmt.Errorf("%w: users.updated_at", common.ErrMalformedRow)
	}

	return &models.User{
		ID:        r.ID.String,
		Username:  r.Username.String,
		Email:     r.Email.String,
		Password:  r.Password.String,
		Role:      r.Role.String,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}, nil
}
