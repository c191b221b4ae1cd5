package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// ContextKey is the type for request context keys set by the middleware.
type ContextKey string

const (
	UserIDKey    ContextKey = "user_id"
	UserEmailKey ContextKey = "user_email"
)

const sessionCookieName = "session"

// Middleware authenticates requests from the session token, either in the
// Authorization header or the session cookie set by the OAuth callback.
type Middleware struct {
	jwtService  *JWTService
	adminEmails map[string]bool
	log         *zap.Logger
}

// NewMiddleware creates the auth middleware. adminEmails is the
// comma-separated allowlist from configuration.
func NewMiddleware(jwtService *JWTService, adminEmails string, log *zap.Logger) *Middleware {
	allowlist := make(map[string]bool)
	for _, email := range strings.Split(adminEmails, ",") {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			allowlist[email] = true
		}
	}

	return &Middleware{
		jwtService:  jwtService,
		adminEmails: allowlist,
		log:         log,
	}
}

// RequireAuth rejects requests without a valid session token.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.claimsFromRequest(r)
		if err != nil {
			m.log.Debug("unauthenticated request rejected", zap.Error(err))
			if err == ErrExpiredToken {
				http.Error(w, "Token expired", http.StatusUnauthorized)
			} else {
				http.Error(w, "Authorization required", http.StatusUnauthorized)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(m.withClaims(r.Context(), claims)))
	}
}

// OptionalAuth attaches user identity when a valid token is present but
// never rejects; guests pass through unchanged.
func (m *Middleware) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.claimsFromRequest(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(m.withClaims(r.Context(), claims)))
	}
}

// RequireAdmin rejects requests whose authenticated email is not on the
// admin allowlist. Composes after RequireAuth semantics: unauthenticated
// requests get 401, non-admins 403.
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		email, ok := GetUserEmailFromContext(r.Context())
		if !ok || !m.adminEmails[strings.ToLower(email)] {
			m.log.Debug("admin access denied", zap.String("email", email))
			http.Error(w, "Admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IsAdmin reports whether an email is on the allowlist.
func (m *Middleware) IsAdmin(email string) bool {
	return m.adminEmails[strings.ToLower(email)]
}

func (m *Middleware) claimsFromRequest(r *http.Request) (*Claims, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		tokenString := ExtractTokenFromBearer(header)
		if tokenString == "" {
			return nil, ErrInvalidToken
		}
		return m.jwtService.ValidateToken(tokenString)
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return m.jwtService.ValidateToken(cookie.Value)
}

func (m *Middleware) withClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	return context.WithValue(ctx, UserEmailKey, claims.Email)
}

// GetUserIDFromContext extracts the authenticated user ID, if any.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}

// GetUserEmailFromContext extracts the authenticated email, if any.
func GetUserEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserEmailKey).(string)
	return email, ok
}

// CORS handles cross-origin requests from the frontend dev servers.
func (m *Middleware) CORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowedOrigins := []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:8080",
			"http://127.0.0.1:8080",
		}

		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	}
}
