// Package auditlogs persists audit trail entries.
package auditlogs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/librarykeeper/internal/dbx"
	"github.com/dmitrijs2005/librarykeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	var details any
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		details = string(b)
	}

	query := `
		INSERT INTO audit_logs (user_id, action, resource, resource_id, details, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		nullString(entry.UserID),
		entry.Action,
		entry.Resource,
		nullString(entry.ResourceID),
		details,
		nullString(entry.IPAddress),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
