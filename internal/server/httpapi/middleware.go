package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dmitrijs2005/librarykeeper/internal/common"
	"github.com/dmitrijs2005/librarykeeper/internal/logging"
	"github.com/dmitrijs2005/librarykeeper/internal/server/auth"
)

// AccessVerifier validates access tokens. *auth.Codec implements it.
type AccessVerifier interface {
	VerifyAccess(token string) (*auth.AccessPayload, error)
}

type ctxKey string

const userKey ctxKey = "user"

// UserFromContext returns the identity attached by the authentication
// middleware.
func UserFromContext(ctx context.Context) (*auth.AccessPayload, bool) {
	p, ok := ctx.Value(userKey).(*auth.AccessPayload)
	return p, ok && p != nil
}

// authenticate requires "Authorization: Bearer <access token>". Expired
// and invalid tokens are reported separately.
func authenticate(v AccessVerifier, ew errorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(common.AuthorizationHeader)
			if !strings.HasPrefix(header, common.BearerPrefix) {
				ew.write(w, r, errMissingBearer)
				return
			}

			p, err := v.VerifyAccess(strings.TrimPrefix(header, common.BearerPrefix))
			if err != nil {
				ew.write(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, p)))
		})
	}
}

// requestLogger logs one line per request after it completes.
func requestLogger(l logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			l.Info(r.Context(), "request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"ip", clientIP(r),
			)
		})
	}
}

type httpMetrics interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// instrument records request counts and latency by route pattern so that
// path parameters do not explode label cardinality.
func instrument(m httpMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					route = p
				}
			}
			m.ObserveHTTP(r.Method, route, ww.Status(), time.Since(start))
		})
	}
}

// recoverer converts panics into the generic 500 envelope.
func recoverer(ew errorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					ew.write(w, r, fmt.Errorf("panic: %v", rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// limitBody caps request bodies at n bytes.
func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allowOrigin admits a single configured origin with credentials. An
// empty origin admits none.
func allowOrigin(origin string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, o string) bool {
			return origin != "" && o == origin
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
}
