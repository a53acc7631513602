package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eventsite-service/internal/service"
)

// EnrollmentHandler serves the authenticated cart and enrollment endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// RegisterRoutes registers the cart and enrollment routes; callers mount
// them behind authentication.
func (h *EnrollmentHandler) RegisterRoutes(router chi.Router) {
	router.Route("/cart", func(r chi.Router) {
		r.Get("/", h.ListCart)
		r.Post("/", h.AddToCart)
		r.Delete("/{enrollmentID}", h.RemoveFromCart)
		r.Post("/checkout", h.Checkout)
	})
	router.Route("/enrollments", func(r chi.Router) {
		r.Get("/", h.ListEnrollments)
		r.Post("/{enrollmentID}/cancel", h.CancelEnrollment)
	})
}

type addToCartRequest struct {
	CourseID string `json:"course_id"`
}

func (h *EnrollmentHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondWithError(w, http.StatusUnauthorized, service.ErrUnauthorized, "Authentication required")
		return
	}

	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.CourseID == "" {
		respondWithError(w, http.StatusBadRequest, service.ErrInvalidInput, "course_id is required")
		return
	}

	item, err := h.enrollments.AddToCart(r.Context(), claims.UserID, req.CourseID)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to add to cart")
		return
	}
	respondWithJSON(w, http.StatusCreated, successResponse(item, "Added to cart"))
}

func (h *EnrollmentHandler) ListCart(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondWithError(w, http.StatusUnauthorized, service.ErrUnauthorized, "Authentication required")
		return
	}

	items, err := h.enrollments.ListCart(r.Context(), claims.UserID)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to list cart")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(items, "Cart retrieved"))
}

func (h *EnrollmentHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondWithError(w, http.StatusUnauthorized, service.ErrUnauthorized, "Authentication required")
		return
	}

	err := h.enrollments.RemoveFromCart(r.Context(), claims.UserID, chi.URLParam(r, "enrollmentID"))
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to remove from cart")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil, "Removed from cart"))
}

func (h *EnrollmentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondWithError(w, http.StatusUnauthorized, service.ErrUnauthorized, "Authentication required")
		return
	}

	confirmed, err := h.enrollments.Checkout(r.Context(), claims.UserID)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Checkout failed")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(confirmed, "Enrollment confirmed"))
}

func (h *EnrollmentHandler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondWithError(w, http.StatusUnauthorized, service.ErrUnauthorized, "Authentication required")
		return
	}

	items, err := h.enrollments.ListEnrollments(r.Context(), claims.UserID)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to list enrollments")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(items, "Enrollments retrieved"))
}

func (h *EnrollmentHandler) CancelEnrollment(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondWithError(w, http.StatusUnauthorized, service.ErrUnauthorized, "Authentication required")
		return
	}

	err := h.enrollments.CancelEnrollment(r.Context(), claims.UserID, chi.URLParam(r, "enrollmentID"))
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to cancel enrollment")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil, "Enrollment cancelled"))
}
