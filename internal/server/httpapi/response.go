// Package httpapi exposes the authentication service over HTTP: routing,
// request validation, bearer authentication, rate limiting and the JSON
// response envelope shared by every endpoint.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/librarykeeper/internal/common"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    any          `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries the per-field failures of a request body.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string { return common.ErrValidationFailed.Error() }

func (e *ValidationError) Unwrap() error { return common.ErrValidationFailed }

const internalErrorMessage = "An unexpected internal server error occurred"

// operationalErrors maps domain errors to the status and message clients
// see. Anything not listed is an internal error.
var operationalErrors = []struct {
	err     error
	status  int
	message string
}{
	{common.ErrValidationFailed, http.StatusUnprocessableEntity, "Validation failed"},
	{common.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid username or password"},
	{common.ErrDuplicateUsername, http.StatusConflict, "Username already exists"},
	{common.ErrDuplicateEmail, http.StatusConflict, "Email already registered"},
	{common.ErrInvalidRefreshToken, http.StatusUnauthorized, "Invalid or expired refresh token"},
	{common.ErrRevokedOrUnknownToken, http.StatusUnauthorized, "Refresh token has been revoked or does not exist"},
	{common.ErrUserGone, http.StatusUnauthorized, "User no longer exists"},
	{common.ErrTokenExpired, http.StatusUnauthorized, "Access token has expired"},
	{common.ErrInvalidToken, http.StatusUnauthorized, "Invalid access token"},
	{common.ErrUnauthorized, http.StatusUnauthorized, "Access token is required"},
}

// classify returns the status and client message for err and whether err
// is an expected, operational failure.
func classify(err error) (int, string, bool) {
	for _, o := range operationalErrors {
		if errors.Is(err, o.err) {
			return o.status, o.message, true
		}
	}
	return http.StatusInternalServerError, internalErrorMessage, false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func sendSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func sendError(w http.ResponseWriter, status int, message string, fields []FieldError) {
	writeJSON(w, status, envelope{Success: false, Message: message, Errors: fields})
}
