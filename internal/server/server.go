// Package server exposes the authentication core over a JSON HTTP API.
package server

import (
	"context"
	"net/http"

	"identity-gateway/internal/auth"
	"identity-gateway/internal/logging"
)

// Server mounts the public auth endpoints onto a stdlib mux. It does not
// listen; callers wrap Handler() in an http.Server.
type Server struct {
	svc   *auth.Service
	log   logging.Logger
	ready func(ctx context.Context) error // nil means always healthy
	mux   *http.ServeMux
}

// New creates a Server with all routes mounted. ready, when non-nil, is probed
// by the health endpoint (typically the database ping).
func New(svc *auth.Service, log logging.Logger, ready func(ctx context.Context) error) *Server {
	s := &Server{
		svc:   svc,
		log:   log,
		ready: ready,
		mux:   http.NewServeMux(),
	}
	s.mountRoutes()
	return s
}

func (s *Server) mountRoutes() {
	s.handle(http.MethodPost, "/auth/login", s.handleLogin)
	s.handle(http.MethodPost, "/auth/2fa/totp", s.handleTwoFactorTOTP)
	s.handle(http.MethodPost, "/auth/2fa/recovery", s.handleTwoFactorRecovery)
	s.handle(http.MethodPost, "/auth/2fa/enroll", s.handleTwoFactorEnroll)
	s.handle(http.MethodPost, "/auth/register", s.handleRegister)
	s.handle(http.MethodGet, "/auth/confirm-email", s.handleConfirmEmail)
	s.handle(http.MethodGet, "/healthz", s.handleHealth)
}

// handle attaches a method-guarded route.
func (s *Server) handle(method, path string, h http.HandlerFunc) {
	s.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	})
}

// Handler returns the routed handler with cache-suppressing headers on the
// auth endpoints so tokens never land in shared caches.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) >= 6 && r.URL.Path[:6] == "/auth/" {
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Cache-Control", "no-store")
		}
		s.mux.ServeHTTP(w, r)
	})
}
