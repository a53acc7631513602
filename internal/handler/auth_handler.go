package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"eventsite-service/internal/model"
	"eventsite-service/internal/service"
	"eventsite-service/internal/util"
)

// AuthHandler handles the OTP login endpoints.
type AuthHandler struct {
	authService *service.AuthService
	users       model.UserRepository
}

func NewAuthHandler(authService *service.AuthService, users model.UserRepository) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		users:       users,
	}
}

// RegisterRoutes registers the public auth routes.
func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Route("/auth", func(r chi.Router) {
		r.Post("/request-otp", h.RequestOTP)
		r.Post("/verify-otp", h.VerifyOTP)
		r.Post("/admin/verify-otp", h.AdminVerifyOTP)
		r.Post("/exchange-session", h.ExchangeSession)
	})
}

// RegisterProfileRoutes registers the authenticated profile and logout routes.
func (h *AuthHandler) RegisterProfileRoutes(router chi.Router) {
	router.Get("/profile", h.GetProfile)
	router.Put("/profile", h.UpdateProfile)
	router.Post("/auth/logout", h.Logout)
}

type requestOTPRequest struct {
	Phone string `json:"phone"`
}

func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req requestOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.authService.RequestOTP(ctx, req.Phone)
	if err != nil {
		statusCode := getStatusCode(err)
		if statusCode == http.StatusTooManyRequests && result != nil {
			seconds := int(result.RetryAfter.Round(time.Second).Seconds())
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
		respondWithError(w, statusCode, err, "Failed to send code")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(result, "Code sent"))
	util.Info("OTP requested via HTTP",
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "RequestOTP"),
	)
}

type verifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.authService.VerifyOTP(ctx, req.Phone, req.Code)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Verification failed")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(map[string]interface{}{
		"access_token": result.AccessToken,
		"expires_at":   result.ExpiresAt,
		"is_new_user":  result.IsNewUser,
	}, "Login successful"))
	util.Info("OTP verified via HTTP",
		util.String("user_id", result.User.ID),
		util.Bool("is_new_user", result.IsNewUser),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "VerifyOTP"),
	)
}

type adminVerifyOTPRequest struct {
	Phone    string `json:"phone"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

func (h *AuthHandler) AdminVerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req adminVerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.authService.AdminVerifyOTP(ctx, req.Phone, req.Code, req.Password)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Verification failed")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(map[string]interface{}{
		"handoff_token":      result.HandoffToken,
		"expires_in_seconds": int(result.ExpiresIn.Seconds()),
	}, "Second factor accepted"))
}

type exchangeSessionRequest struct {
	HandoffToken string `json:"handoff_token"`
}

func (h *AuthHandler) ExchangeSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req exchangeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.authService.ExchangeSession(ctx, req.HandoffToken)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Exchange failed")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(map[string]interface{}{
		"access_token": result.AccessToken,
		"expires_at":   result.ExpiresAt,
	}, "Session created"))
	util.Info("Admin session exchanged via HTTP", util.String("user_id", result.User.ID))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondWithError(w, http.StatusUnauthorized, service.ErrUnauthorized, "Authentication required")
		return
	}

	if err := h.authService.Logout(r.Context(), claims); err != nil {
		respondWithError(w, getStatusCode(err), err, "Logout failed")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(nil, "Logged out"))
	util.Info("session revoked via HTTP", util.String("user_id", claims.UserID))
}

func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondWithError(w, http.StatusUnauthorized, service.ErrUnauthorized, "Authentication required")
		return
	}

	user, err := h.authService.Profile(r.Context(), claims.UserID)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Account not found")
		return
	}
	sanitizeUser(user)

	respondWithJSON(w, http.StatusOK, successResponse(user, "Profile retrieved"))
}

type updateProfileRequest struct {
	FullName string `json:"full_name"`
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondWithError(w, http.StatusUnauthorized, service.ErrUnauthorized, "Authentication required")
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if util.ContainsSuspicious(req.FullName) {
		respondWithError(w, http.StatusBadRequest, service.ErrInvalidInput, "Invalid full name")
		return
	}
	req.FullName = util.SanitizeInput(req.FullName)
	if req.FullName == "" || len(req.FullName) > 120 {
		respondWithError(w, http.StatusBadRequest, service.ErrInvalidInput, "Invalid full name")
		return
	}

	if err := h.users.UpdateProfile(r.Context(), claims.UserID, req.FullName); err != nil {
		respondWithError(w, http.StatusInternalServerError, service.ErrServer, "Failed to update profile")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(nil, "Profile updated"))
}

// sanitizeUser removes sensitive data from user before sending in response
func sanitizeUser(user *model.User) {
	user.PhoneEncrypted = nil
	user.PhoneKeyID = ""
	user.PasswordHash = ""
}
