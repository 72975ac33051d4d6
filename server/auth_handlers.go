package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/umputun/feedloop/pkg/domain"
)

// sessionCookie is the cookie holding the session token, an alternative
// to the Authorization header for browser clients
const sessionCookie = "feedloop_session"

type ctxKey int

const userKey ctxKey = iota

// userFrom returns the authenticated user stored by authMiddleware
func userFrom(r *http.Request) *domain.User {
	user, _ := r.Context().Value(userKey).(*domain.User)
	return user
}

// authMiddleware resolves the session token and rejects unauthenticated requests
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			renderError(w, r, fmt.Errorf("authentication required"), http.StatusUnauthorized)
			return
		}

		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			renderError(w, r, fmt.Errorf("invalid or expired session"), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// requestToken extracts the session token, bearer header first, cookie as fallback
func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// registerHandler creates a new user account
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	user, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}

	// new accounts start with a catch-all category so subscriptions
	// without an explicit category have somewhere to land
	category := &domain.Category{UserID: user.ID, Title: "Uncategorized"}
	if err := s.store.CreateCategory(r.Context(), category); err != nil {
		renderDomainError(w, r, err)
		return
	}

	renderJSON(w, r, http.StatusCreated, map[string]interface{}{
		"id":    user.ID,
		"email": user.Email,
	})
}

// loginHandler verifies credentials and opens a session
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	session, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if domain.IsValidation(err) {
			renderError(w, r, err, http.StatusUnauthorized)
			return
		}
		renderDomainError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"token":      session.Token,
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// logoutHandler closes the current session
func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	token := requestToken(r)
	if token == "" {
		renderError(w, r, fmt.Errorf("authentication required"), http.StatusUnauthorized)
		return
	}

	if err := s.auth.Logout(r.Context(), token); err != nil {
		renderDomainError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	renderJSON(w, r, http.StatusOK, map[string]string{"status": "logged out"})
}
