package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
	"wichat/internal/entity"
	"wichat/internal/usecase"

	"go.uber.org/zap"
)

const refreshTokenCookie = "refresh_token"

type AuthHandler struct {
	authUc usecase.AuthUsecase
	userUc usecase.UserUsecase
	log    *zap.Logger
}

func NewAuthHandler(authUc usecase.AuthUsecase, userUc usecase.UserUsecase, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authUc: authUc,
		userUc: userUc,
		log:    log,
	}
}

// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req entity.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" || req.FullName == "" {
		writeError(w, http.StatusBadRequest, "fullName, email and password are required")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	authResponse, err := h.authUc.Signup(r.Context(), req)
	if err != nil {
		if errors.Is(err, usecase.ErrEmailAlreadyTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.log.Error("signup", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.setSessionCookies(w, authResponse)

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"user":    authResponse.User,
	})
}

// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req entity.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	authResponse, err := h.authUc.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.log.Error("login", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.setSessionCookies(w, authResponse)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    authResponse.User,
	})
}

// POST /auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	refreshToken := refreshTokenFromRequest(r)
	if refreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh token is required")
		return
	}

	authResponse, err := h.authUc.RefreshToken(r.Context(), refreshToken)
	if err != nil {
		h.clearSessionCookies(w)
		writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	h.setSessionCookies(w, authResponse)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    authResponse.User,
	})
}

// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if refreshToken := refreshTokenFromRequest(r); refreshToken != "" {
		if err := h.authUc.Logout(r.Context(), refreshToken); err != nil {
			h.log.Warn("logout", zap.Error(err))
		}
	}

	h.clearSessionCookies(w)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
	})
}

// POST /auth/logout-all
func (h *AuthHandler) LogoutAllDevices(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.authUc.LogoutAllDevices(r.Context(), claims.UserId); err != nil {
		h.log.Error("logout all devices", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.clearSessionCookies(w)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
	})
}

// GET /auth/check
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.userUc.Get(r.Context(), claims.UserId)
	if err != nil {
		h.log.Error("auth check", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// PUT /auth/update-profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		ProfilePic string `json:"profilePic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.userUc.UpdateProfilePic(r.Context(), claims.UserId, req.ProfilePic)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrMissingProfilePic):
			writeError(w, http.StatusBadRequest, "profile picture is required")
		case errors.Is(err, usecase.ErrMediaUpload):
			h.log.Error("profile pic upload", zap.Error(err))
			writeError(w, http.StatusBadGateway, "failed to store image")
		default:
			h.log.Error("update profile", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

func refreshTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	var req entity.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, auth entity.AuthResponse) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    auth.AccessToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   15 * 60,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    auth.RefreshToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   30 * 24 * 60 * 60,
	})
}

func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
		})
	}
}
