package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/librarykeeper/internal/common"
	"github.com/dmitrijs2005/librarykeeper/internal/logging"
)

var (
	errBodyTooLarge  = errors.New("request body too large")
	errMissingBearer = fmt.Errorf("missing bearer token: %w", common.ErrUnauthorized)
)

// errorWriter turns handler errors into envelopes. Internal errors are
// logged with the request and reported with a generic message.
type errorWriter struct {
	logger logging.Logger
}

func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		sendError(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
		return
	}

	status, msg, ok := classify(err)
	if !ok {
		e.logger.Error(r.Context(), "unhandled error",
			"error", err, "method", r.Method, "path", r.URL.Path)
		sendError(w, status, msg, nil)
		return
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		sendError(w, status, msg, verr.Fields)
		return
	}
	sendError(w, status, msg, nil)
}
