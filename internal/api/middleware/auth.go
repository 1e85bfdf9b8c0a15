package middleware

import (
	"context"
	"net/http"
	"strings"

	apiContext "traction/internal/api/context"
	"traction/internal/pkg/errors"
	"traction/internal/platform/auth"
)

type AuthMiddleware struct {
	tokenSvc *auth.TokenService
}

func NewAuthMiddleware(tokenSvc *auth.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc}
}

// Handle resolves the bearer token into claims. Every failure mode produces
// the same generic unauthenticated response.
func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			errors.Write(w, errors.Unauthenticated())
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			errors.Write(w, errors.Unauthenticated())
			return
		}

		claims, err := m.tokenSvc.ValidateToken(parts[1])
		if err != nil {
			errors.Write(w, errors.Unauthenticated())
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		next(w, r.WithContext(ctx))
	}
}
