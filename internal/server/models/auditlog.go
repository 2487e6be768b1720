package models

// Audit actions recorded for the authentication flows.
const (
	ActionUserLogin    = "USER_LOGIN"
	ActionUserRegister = "USER_REGISTER"
	ActionTokenRefresh = "TOKEN_REFRESH"
	ActionUserLogout   = "USER_LOGOUT"
)

// AuditEntry is one row of the audit trail. Empty UserID and ResourceID are
// stored as NULL.
type AuditEntry struct {
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	Details    map[string]any
	IPAddress  string
}
