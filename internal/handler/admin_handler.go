package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"eventsite-service/internal/service"
)

// AdminHandler serves the admin dashboard and user management endpoints.
type AdminHandler struct {
	admin *service.AdminService
}

func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// RegisterRoutes registers the admin routes; callers mount them behind the
// admin role gate.
func (h *AdminHandler) RegisterRoutes(router chi.Router) {
	router.Get("/dashboard", h.Dashboard)
	router.Route("/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Get("/{userID}", h.GetUser)
	})
	router.Get("/enrollments", h.ListAllEnrollments)
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.DashboardStats(r.Context())
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to gather stats")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(stats, "Dashboard stats"))
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	users, err := h.admin.ListUsers(r.Context(), limit, offset)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to list users")
		return
	}
	for _, u := range users {
		sanitizeUser(u)
	}
	respondWithJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    users,
		Meta:    &Meta{PageSize: limit, Offset: offset},
	})
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.admin.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to get user")
		return
	}
	sanitizeUser(user)
	respondWithJSON(w, http.StatusOK, successResponse(user, "User retrieved"))
}

func (h *AdminHandler) ListAllEnrollments(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	enrollments, err := h.admin.ListAllEnrollments(r.Context(), limit, offset)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to list enrollments")
		return
	}
	respondWithJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    enrollments,
		Meta:    &Meta{PageSize: limit, Offset: offset},
	})
}
