package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/latchkey-auth/latchkey/internal/platform/errors"
	"github.com/latchkey-auth/latchkey/internal/platform/timeouts"
	"github.com/latchkey-auth/latchkey/internal/session"
)

// maxBodyBytes bounds ceremony response payloads.
const maxBodyBytes = 1 << 20

type messageResponse struct {
	Message string `json:"message"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// handleRegister serves the registration ceremony. GET issues creation
// options; POST verifies the response and stores the credential. Both require
// an authenticated caller.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	userID, err := s.sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Storage)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		options, err := s.passkeys.BeginRegistration(ctx, userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, options)

	case http.MethodPost:
		body, err := readBody(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if _, err := s.passkeys.FinishRegistration(ctx, userID, body); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, statusResponse{Success: true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAuthenticate serves the authentication ceremony. GET issues assertion
// options for the requested user; POST verifies the assertion and issues a
// session. Neither requires prior authentication.
func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Storage)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		userID := strings.TrimSpace(r.URL.Query().Get("user"))
		if userID == "" {
			writeError(w, errors.New(errors.CodeInputInvalid, "user is required"))
			return
		}
		options, err := s.passkeys.BeginLogin(ctx, userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, options)

	case http.MethodPost:
		body, err := readBody(r)
		if err != nil {
			writeError(w, err)
			return
		}
		userID, err := s.passkeys.FinishLogin(ctx, body)
		if err != nil {
			writeError(w, err)
			return
		}
		token, err := s.sessions.Issue(userID)
		if err != nil {
			writeError(w, errors.Wrap(errors.CodeUnknown, "issue session", err))
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     session.CookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(s.sessions.TTL().Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, statusResponse{Success: true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// sessionUser resolves the authenticated caller from the session cookie or a
// bearer token.
func (s *Server) sessionUser(r *http.Request) (string, error) {
	token := ""
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		token = cookie.Value
	}
	if token == "" {
		header := r.Header.Get("Authorization")
		if rest, ok := strings.CutPrefix(header, "Bearer "); ok {
			token = rest
		}
	}
	if token == "" {
		return "", errors.New(errors.CodeUnauthenticated, "authentication is required")
	}
	return s.sessions.Verify(token)
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(errors.CodeInputInvalid, "read request body", err)
	}
	if len(body) == 0 {
		return nil, errors.New(errors.CodeInputInvalid, "request body is required")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps a domain error to its HTTP status with an opaque message.
// Verification failures do not reveal which check rejected the response.
func writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	writeJSON(w, code.HTTPStatus(), messageResponse{Message: publicMessage(code)})
}

func publicMessage(code errors.Code) string {
	switch code {
	case errors.CodeInputInvalid:
		return "invalid request"
	case errors.CodeUnauthenticated:
		return "authentication is required"
	case errors.CodeNoPendingChallenge:
		return "pre-registration is required"
	case errors.CodeDuplicateCredential:
		return "credential is already registered"
	case errors.CodeUnknownCredential, errors.CodeVerificationFailed:
		return "verification failed"
	case errors.CodePersistence:
		return "storage is unavailable"
	default:
		return "something went wrong"
	}
}
