package http

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/julioborgesigt/encurtador/internal/admin"
	"github.com/julioborgesigt/encurtador/internal/auth"
	"github.com/julioborgesigt/encurtador/internal/repository"
	"github.com/julioborgesigt/encurtador/internal/service"
	"github.com/julioborgesigt/encurtador/internal/sweep"
)

// Server wires the HTTP handlers together.
type Server struct {
	authHandlers    *auth.AuthHandlers
	linksHandler    *LinksHandler
	redirectHandler *RedirectHandler
	healthHandler   *HealthHandler
	adminHandler    *AdminHandler
	authMiddleware  *auth.Middleware
	log             *zap.Logger
}

// NewServer creates the HTTP server.
func NewServer(
	storage repository.Storage,
	shortener *service.ShortenerService,
	adminService *admin.Service,
	sweeper *sweep.Sweeper,
	googleService *auth.GoogleService,
	jwtService *auth.JWTService,
	authMiddleware *auth.Middleware,
	secureCookies bool,
	baseURL string,
	log *zap.Logger,
) *Server {
	return &Server{
		authHandlers:    auth.NewAuthHandlers(googleService, jwtService, storage, authMiddleware, secureCookies, log),
		linksHandler:    NewLinksHandler(shortener, log, baseURL),
		redirectHandler: NewRedirectHandler(shortener, log),
		healthHandler:   NewHealthHandler(storage, log),
		adminHandler:    NewAdminHandler(adminService, sweeper, log),
		authMiddleware:  authMiddleware,
		log:             log,
	}
}

// SetupRoutes registers all routes on a fresh mux.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Health checks (no authentication)
	mux.HandleFunc("/health", s.healthHandler.Health)
	mux.HandleFunc("/ready", s.healthHandler.Ready)

	// Google sign-in flow
	mux.HandleFunc("/auth/google/callback", s.authHandlers.Callback)
	mux.HandleFunc("/auth/google", s.authHandlers.Login)
	mux.HandleFunc("/auth/logout", s.authHandlers.Logout)
	mux.HandleFunc("/auth/user", s.withCORS(s.authMiddleware.OptionalAuth(s.authHandlers.User)))
	mux.HandleFunc("/auth/status", s.withCORS(s.authMiddleware.OptionalAuth(s.authHandlers.Status)))

	// Link API. Shorten and listing take optional auth: guests may create
	// (with clamped options) and see an empty history.
	mux.HandleFunc("/api/shorten", s.withCORS(s.authMiddleware.OptionalAuth(s.linksHandler.CreateLink)))
	mux.HandleFunc("/api/urls", s.withCORS(s.authMiddleware.OptionalAuth(s.handleURLCollection)))
	mux.HandleFunc("/api/urls/", s.withCORS(s.authMiddleware.RequireAuth(s.handleURLItem)))
	mux.HandleFunc("/api/stats/", s.withCORS(s.authMiddleware.RequireAuth(s.linksHandler.GetStats)))

	// Admin panel (allowlisted emails only)
	mux.HandleFunc("/api/admin/dashboard", s.withCORS(s.authMiddleware.RequireAdmin(s.adminHandler.Dashboard)))
	mux.HandleFunc("/api/admin/users", s.withCORS(s.authMiddleware.RequireAdmin(s.adminHandler.Users)))
	mux.HandleFunc("/api/admin/links/", s.withCORS(s.authMiddleware.RequireAdmin(s.adminHandler.DeleteLink)))
	mux.HandleFunc("/api/admin/cleanup", s.withCORS(s.authMiddleware.RequireAdmin(s.adminHandler.Cleanup)))

	// Redirect endpoint catches everything else; must come last.
	mux.HandleFunc("/", s.redirectHandler.HandleRedirect)

	return s.withRequestID(mux)
}

// handleURLCollection dispatches /api/urls by method.
func (s *Server) handleURLCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.linksHandler.ListLinks(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleURLItem dispatches /api/urls/{code} by method.
func (s *Server) handleURLItem(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodDelete:
		s.linksHandler.DeleteLink(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// withCORS adds CORS headers to a handler.
func (s *Server) withCORS(handler http.HandlerFunc) http.HandlerFunc {
	return s.authMiddleware.CORS(handler)
}

// withRequestID stamps every request with an ID for log correlation.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}
