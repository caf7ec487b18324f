package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"cakemarket/internal/usecase"
	"cakemarket/pkg/response"
)

// Context keys set by Authenticate.
const (
	ContextUserID = "uid"
	ContextRole   = "role"
)

type AuthMiddleware struct {
	auth *usecase.AuthUseCase
}

func NewAuthMiddleware(auth *usecase.AuthUseCase) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

// Authenticate resolves the bearer token to an account and stores its id and
// role on the echo context.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := m.auth.Authenticate(c.Request().Context(), BearerToken(c))
		if err != nil {
			return response.Error(c, err)
		}

		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextRole, identity.Role)
		return next(c)
	}
}

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
func BearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
