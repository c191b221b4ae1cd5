package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/julioborgesigt/encurtador/internal/auth"
	"github.com/julioborgesigt/encurtador/internal/domain"
	"github.com/julioborgesigt/encurtador/internal/repository"
	"github.com/julioborgesigt/encurtador/internal/service"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// LinksHandler serves the link API.
type LinksHandler struct {
	shortener *service.ShortenerService
	log       *zap.Logger
	baseURL   string
}

func NewLinksHandler(shortener *service.ShortenerService, log *zap.Logger, baseURL string) *LinksHandler {
	return &LinksHandler{
		shortener: shortener,
		log:       log,
		baseURL:   baseURL,
	}
}

// CreateLinkRequest is the creation request body.
type CreateLinkRequest struct {
	URL         string `json:"url"`
	CustomCode  string `json:"customCode,omitempty"`
	Description string `json:"description,omitempty"`
	ExpiresIn   *int   `json:"expiresIn,omitempty"` // days
}

// LinkResponse is the public shape of a link record.
type LinkResponse struct {
	OriginalURL  string  `json:"original_url"`
	ShortURL     string  `json:"short_url"`
	ShortCode    string  `json:"short_code"`
	Description  *string `json:"description,omitempty"`
	QRCode       *string `json:"qr_code,omitempty"`
	Clicks       int64   `json:"clicks"`
	IsCustom     bool    `json:"is_custom"`
	ExpiresAt    *string `json:"expires_at,omitempty"`
	CreatedAt    string  `json:"created_at"`
	LastAccessed *string `json:"last_accessed,omitempty"`
}

// ListLinksResponse pages a user's links.
type ListLinksResponse struct {
	URLs       []LinkResponse `json:"urls"`
	Pagination Pagination     `json:"pagination"`
}

// Pagination describes a result page.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// CreateLink creates a short link.
// POST /api/shorten
func (h *LinksHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid create link request", zap.Error(err))
		h.writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	url, err := h.shortener.CreateShortLink(r.Context(), service.CreateRequest{
		URL:         req.URL,
		CustomCode:  req.CustomCode,
		Description: req.Description,
		ExpiresIn:   req.ExpiresIn,
	}, requesterFromContext(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, h.toResponse(url), http.StatusOK)
}

// ListLinks returns the requester's links with pagination and search.
// GET /api/urls
func (h *LinksHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	page, limit := paginationParams(r)
	params := repository.ListParams{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	urls, total, err := h.shortener.ListLinks(r.Context(), requesterFromContext(r), params)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	responses := make([]LinkResponse, len(urls))
	for i, url := range urls {
		responses[i] = h.toResponse(url)
	}

	h.writeJSON(w, ListLinksResponse{
		URLs: responses,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + int64(limit) - 1) / int64(limit),
		},
	}, http.StatusOK)
}

// GetStats returns the stored record for a short code.
// GET /api/stats/{code}
func (h *LinksHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	code := pathSuffix(r.URL.Path, "/api/stats/")
	if code == "" {
		h.writeError(w, "Short code is required", http.StatusBadRequest)
		return
	}

	url, err := h.shortener.GetStats(r.Context(), code, requesterFromContext(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, h.toResponse(url), http.StatusOK)
}

// DeleteLink removes a link after the ownership guard clears the caller.
// DELETE /api/urls/{code}
func (h *LinksHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	code := pathSuffix(r.URL.Path, "/api/urls/")
	if code == "" {
		h.writeError(w, "Short code is required", http.StatusBadRequest)
		return
	}

	if err := h.shortener.Delete(r.Context(), code, requesterFromContext(r)); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (h *LinksHandler) toResponse(url *domain.URL) LinkResponse {
	resp := LinkResponse{
		OriginalURL: url.OriginalURL,
		ShortURL:    h.baseURL + "/" + url.ShortCode,
		ShortCode:   url.ShortCode,
		Description: url.Description,
		QRCode:      url.QRCode,
		Clicks:      url.Clicks,
		IsCustom:    url.IsCustom,
		CreatedAt:   url.CreatedAt.Format(time.RFC3339),
	}
	if url.ExpiresAt != nil {
		expiresAt := url.ExpiresAt.Format(time.RFC3339)
		resp.ExpiresAt = &expiresAt
	}
	if url.LastAccessed != nil {
		lastAccessed := url.LastAccessed.Format(time.RFC3339)
		resp.LastAccessed = &lastAccessed
	}
	return resp
}

func (h *LinksHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("failed to encode response", zap.Error(err))
	}
}

func (h *LinksHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeServiceError maps a tagged service error to its HTTP status,
// attaching the per-field map on validation failures.
func (h *LinksHandler) writeServiceError(w http.ResponseWriter, err error) {
	kind := service.KindOf(err)
	switch kind {
	case service.KindValidation:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":  err.Error(),
			"fields": service.FieldsOf(err),
		})
	case service.KindCodeTaken:
		h.writeError(w, err.Error(), http.StatusConflict)
	case service.KindNotFound:
		h.writeError(w, err.Error(), http.StatusNotFound)
	case service.KindGone:
		h.writeError(w, err.Error(), http.StatusGone)
	case service.KindUnauthorized:
		h.writeError(w, err.Error(), http.StatusUnauthorized)
	case service.KindForbidden:
		h.writeError(w, err.Error(), http.StatusForbidden)
	default:
		h.log.Error("request failed", zap.Error(err))
		h.writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// requesterFromContext turns middleware claims into a service requester.
// Returns nil for guests.
func requesterFromContext(r *http.Request) *service.Requester {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		return nil
	}
	email, _ := auth.GetUserEmailFromContext(r.Context())
	return &service.Requester{UserID: userID, Email: email}
}

func paginationParams(r *http.Request) (page, limit int) {
	page = 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}

	limit = defaultPageLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func pathSuffix(path, prefix string) string {
	suffix := strings.TrimPrefix(path, prefix)
	return strings.Trim(suffix, "/")
}
