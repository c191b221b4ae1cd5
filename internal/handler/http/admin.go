package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/julioborgesigt/encurtador/internal/admin"
	"github.com/julioborgesigt/encurtador/internal/sweep"
)

// AdminHandler serves the admin panel API. All routes behind RequireAdmin.
type AdminHandler struct {
	service *admin.Service
	sweeper *sweep.Sweeper
	log     *zap.Logger
}

func NewAdminHandler(service *admin.Service, sweeper *sweep.Sweeper, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		sweeper: sweeper,
		log:     log,
	}
}

// Dashboard returns the aggregate metrics block.
// GET /api/admin/dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.GetDashboard(r.Context())
	if err != nil {
		h.log.Error("failed to build admin dashboard", zap.Error(err))
		h.writeError(w, "Failed to load dashboard", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, dashboard, http.StatusOK)
}

// Users lists users with per-user totals.
// GET /api/admin/users
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	page, limit := paginationParams(r)

	users, total, err := h.service.GetUsers(r.Context(), limit, (page-1)*limit)
	if err != nil {
		h.log.Error("failed to list users", zap.Error(err))
		h.writeError(w, "Failed to load users", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"users": users,
		"pagination": Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + int64(limit) - 1) / int64(limit),
		},
	}, http.StatusOK)
}

// DeleteLink removes any link by ID.
// DELETE /api/admin/links/{id}
func (h *AdminHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin/links/"), "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, "Invalid link ID", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteLink(r.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.writeError(w, "Link not found", http.StatusNotFound)
			return
		}
		h.log.Error("failed to delete link", zap.Int64("link_id", id), zap.Error(err))
		h.writeError(w, "Failed to delete link", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Cleanup triggers an immediate expired-link sweep.
// POST /api/admin/cleanup
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	removed, err := h.sweeper.Run(r.Context())
	if err != nil {
		h.log.Error("manual cleanup failed", zap.Error(err))
		h.writeError(w, "Cleanup failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]int64{"removed": removed}, http.StatusOK)
}

func (h *AdminHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("failed to encode response", zap.Error(err))
	}
}

func (h *AdminHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
