package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/julioborgesigt/encurtador/internal/repository"
)

const stateCookieName = "oauth_state"

// AuthHandlers serves the Google sign-in flow and session endpoints.
type AuthHandlers struct {
	google        *GoogleService
	jwtService    *JWTService
	storage       repository.Storage
	middleware    *Middleware
	secureCookies bool
	log           *zap.Logger
}

func NewAuthHandlers(google *GoogleService, jwtService *JWTService, storage repository.Storage, middleware *Middleware, secureCookies bool, log *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		google:        google,
		jwtService:    jwtService,
		storage:       storage,
		middleware:    middleware,
		secureCookies: secureCookies,
		log:           log,
	}
}

// Login redirects to the Google consent screen with a random CSRF state.
// GET /auth/google
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		h.log.Error("failed to generate OAuth state", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusFound)
}

// Callback completes the exchange, issues a session token and sends the
// user back to the frontend.
// GET /auth/google/callback
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.log.Warn("OAuth state mismatch")
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	user, err := h.google.HandleCallback(r.Context(), code)
	if err != nil {
		h.log.Error("Google sign-in failed", zap.Error(err))
		http.Error(w, "Authentication failed", http.StatusBadGateway)
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.log.Error("failed to issue session token", zap.Int64("user_id", user.ID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Clear the state cookie and install the session.
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/auth", MaxAge: -1})
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.jwtService.config.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout clears the session cookie.
// GET /auth/logout
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

// User returns the authenticated profile.
// GET /auth/user
func (h *AuthHandlers) User(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		h.writeJSON(w, map[string]interface{}{"authenticated": false}, http.StatusUnauthorized)
		return
	}

	user, err := h.storage.GetUserByID(r.Context(), userID)
	if err != nil {
		h.log.Error("failed to load user", zap.Int64("user_id", userID), zap.Error(err))
		h.writeJSON(w, map[string]string{"error": "failed to load user"}, http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"authenticated": true,
		"user":          user,
		"is_admin":      h.middleware.IsAdmin(user.Email),
	}, http.StatusOK)
}

// Status reports whether the request carries a valid session.
// GET /auth/status
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	_, ok := GetUserIDFromContext(r.Context())
	h.writeJSON(w, map[string]bool{"authenticated": ok}, http.StatusOK)
}

func (h *AuthHandlers) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("failed to encode response", zap.Error(err))
	}
}

func randomState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
