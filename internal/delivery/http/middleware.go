package http

import (
	"context"
	"net/http"
	"strings"
	"wichat/internal/entity"
	"wichat/internal/usecase"
)

type contextKey string

const UserContextKey contextKey = "user"

const accessTokenCookie = "access_token"

type AuthMiddleware struct {
	authUc usecase.AuthUsecase
}

func NewAuthMiddleware(authUc usecase.AuthUsecase) *AuthMiddleware {
	return &AuthMiddleware{
		authUc: authUc,
	}
}

// Authenticate resolves the session credential from the Authorization
// header or the access-token cookie and stashes the claims in the
// request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			if cookie, err := r.Cookie(accessTokenCookie); err == nil {
				token = cookie.Value
			}
		}

		if token == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := m.authUc.ValidateAccessToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// ClaimsFromContext returns the authenticated identity set by
// Authenticate.
func ClaimsFromContext(ctx context.Context) (*entity.TokenClaims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*entity.TokenClaims)
	return claims, ok
}
