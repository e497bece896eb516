package middleware

import (
	"strings"

	deliverycontext "clubinex/internal/delivery/context"
	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/domain/service"

	"github.com/labstack/echo/v4"
)

const bearerPrefix = "Bearer "

// AuthMiddleware validates access tokens and enforces roles.
type AuthMiddleware struct {
	tokenSvc service.TokenService
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(tokenSvc service.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc}
}

// Authenticate requires a valid access token and stores the principal.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return domainerrors.ErrUnauthorized.WithDetails("authorization header is missing")
		}

		tokenString, ok := strings.CutPrefix(authHeader, bearerPrefix)
		if !ok || tokenString == "" {
			return domainerrors.ErrUnauthorized.WithDetails("authorization must be a bearer token")
		}

		claims, err := m.tokenSvc.ValidateToken(tokenString)
		if err != nil {
			return domainerrors.ErrUnauthorized.WithDetails("invalid or expired token")
		}
		// Refresh tokens are only accepted by /auth/refresh.
		if claims.Type != service.TokenTypeAccess {
			return domainerrors.ErrUnauthorized.WithDetails("not an access token")
		}

		deliverycontext.SetAuth(c, claims.UserID, claims.Roles)

		return next(c)
	}
}

// RequireRole must run after Authenticate.
func (m *AuthMiddleware) RequireRole(role entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !deliverycontext.HasRole(c, role.String()) {
				return domainerrors.ErrForbidden.WithDetails("requires the " + role.String() + " role")
			}

			return next(c)
		}
	}
}
