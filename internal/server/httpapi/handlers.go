package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/librarykeeper/internal/server/models"
	"github.com/dmitrijs2005/librarykeeper/internal/server/services"
)

// AuthService is the token lifecycle manager behind the /auth routes.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*services.AuthResult, error)
	Register(ctx context.Context, username, email, password string) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID string) (*models.PublicUser, error)
}

// AuditRecorder accepts audit entries without blocking the request.
type AuditRecorder interface {
	Record(ctx context.Context, entry models.AuditEntry)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

const resourceAuth = "auth"

type handlers struct {
	auth    AuthService
	audit   AuditRecorder
	db      Pinger
	metrics operationMetrics
	errors  errorWriter
}

type operationMetrics interface {
	AuthOperation(operation, outcome string)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeBody(r, loginSchema, "username")
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}

	res, err := h.auth.Login(r.Context(), stringField(doc, "username"), stringField(doc, "password"))
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}

	h.record(r, res.User.ID, models.ActionUserLogin)
	h.metrics.AuthOperation("login", "success")
	sendSuccess(w, http.StatusOK, "Login successful", res)
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeBody(r, registerSchema, "username", "email")
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}

	res, err := h.auth.Register(r.Context(),
		stringField(doc, "username"), stringField(doc, "email"), stringField(doc, "password"))
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}

	h.record(r, res.User.ID, models.ActionUserRegister)
	h.metrics.AuthOperation("register", "success")
	sendSuccess(w, http.StatusCreated, "Registration successful", res)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeBody(r, refreshSchema)
	if err != nil {
		h.fail(w, r, "refresh", err)
		return
	}

	tokens, err := h.auth.Refresh(r.Context(), stringField(doc, "refreshToken"))
	if err != nil {
		h.fail(w, r, "refresh", err)
		return
	}

	// The refresh route is unauthenticated, so the entry carries no user.
	h.record(r, "", models.ActionTokenRefresh)
	h.metrics.AuthOperation("refresh", "success")
	sendSuccess(w, http.StatusOK, "Token refreshed successfully", map[string]any{"tokens": tokens})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeBody(r, logoutSchema)
	if err != nil {
		h.fail(w, r, "logout", err)
		return
	}

	if token := stringField(doc, "refreshToken"); token != "" {
		if err := h.auth.Revoke(r.Context(), token); err != nil {
			h.fail(w, r, "logout", err)
			return
		}
	}

	var userID string
	if p, ok := UserFromContext(r.Context()); ok {
		userID = p.UserID
	}
	h.record(r, userID, models.ActionUserLogout)
	h.metrics.AuthOperation("logout", "success")
	writeJSON(w, http.StatusOK, struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Data    any    `json:"data"`
	}{true, "Logout successful", nil})
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	p, ok := UserFromContext(r.Context())
	if !ok {
		h.errors.write(w, r, errMissingBearer)
		return
	}

	user, err := h.auth.Me(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, "me", err)
		return
	}
	h.metrics.AuthOperation("me", "success")
	sendSuccess(w, http.StatusOK, "User retrieved successfully", map[string]any{"user": user})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, msg := http.StatusOK, "Server is healthy"
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			status, msg = http.StatusServiceUnavailable, "Database is unavailable"
		}
	}

	writeJSON(w, status, struct {
		Success   bool   `json:"success"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}{status == http.StatusOK, msg, time.Now().UTC().Format(time.RFC3339Nano)})
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	outcome := "failure"
	if _, _, ok := classify(err); !ok && !errors.Is(err, errBodyTooLarge) {
		outcome = "error"
	}
	h.metrics.AuthOperation(operation, outcome)
	h.errors.write(w, r, err)
}

func (h *handlers) record(r *http.Request, userID, action string) {
	h.audit.Record(r.Context(), models.AuditEntry{
		UserID:    userID,
		Action:    action,
		Resource:  resourceAuth,
		IPAddress: clientIP(r),
	})
}

// clientIP is the address of the connected peer. Forwarding headers are
// not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
