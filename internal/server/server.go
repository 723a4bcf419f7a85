// Package server exposes the WebAuthn ceremonies over HTTP.
package server

import (
	"net/http"

	"github.com/latchkey-auth/latchkey/internal/passkey"
	"github.com/latchkey-auth/latchkey/internal/session"
)

// Server hosts the ceremony endpoints.
type Server struct {
	passkeys *passkey.Service
	sessions *session.Manager
}

// New creates an HTTP server for the ceremony service.
func New(passkeys *passkey.Service, sessions *session.Manager) *Server {
	return &Server{
		passkeys: passkeys,
		sessions: sessions,
	}
}

// RegisterRoutes attaches the ceremony endpoints to a mux.
//
// Registration endpoints require an established session; authentication
// endpoints do not, since the principal is not yet known.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/auth/webauthn/register", s.handleRegister)
	mux.HandleFunc("/auth/webauthn/authenticate", s.handleAuthenticate)
	mux.HandleFunc("/healthz", s.handleHealthz)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
