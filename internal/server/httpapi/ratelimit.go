package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// ipLimit allows max requests per client IP in each window and answers the
// rest with 429 and message. Clients are keyed by RemoteAddr only;
// forwarding headers are not trusted.
func ipLimit(window time.Duration, max int, message string) func(http.Handler) http.Handler {
	if max < 1 {
		max = 1
	}
	return httprate.Limit(max, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			sendError(w, http.StatusTooManyRequests, message, nil)
		}),
	)
}
