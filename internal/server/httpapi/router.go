package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	generalLimitMessage = "Too many requests, please try again later."
	authLimitMessage    = "Too many authentication attempts, please try again later."
)

func (s *Server) routes() http.Handler {
	ew := errorWriter{logger: s.logger}
	h := &handlers{
		auth:    s.auth,
		audit:   s.audit,
		db:      s.db,
		metrics: s.metrics,
		errors:  ew,
	}


	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(instrument(s.metrics))
	r.Use(recoverer(ew))
	r.Use(allowOrigin(s.opts.CORSOrigin))
	r.Use(ipLimit(s.opts.RateLimitWindow, s.opts.RateLimitMax, generalLimitMessage))
	r.Use(limitBody(s.opts.MaxBodyBytes))

	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Use(ipLimit(s.opts.AuthRateLimitWindow, s.opts.AuthRateLimitMax, authLimitMessage))

		r.Post("/login", h.login)
		r.Post("/register", h.register)
		r.Post("/refresh", h.refresh)

		r.Group(func(r chi.Router) {
			r.Use(authenticate(s.verifier, ew))
			r.Post("/logout", h.logout)
			r.Get("/me", h.me)
		})
	})

	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	sendError(w, http.StatusNotFound, fmt.Sprintf("Route %s %s not found", r.Method, r.URL.RequestURI()), nil)
}
