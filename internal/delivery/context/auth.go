package context

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// KeyUserID is the key for storing the authenticated user ID in echo.Context.
	KeyUserID ContextKey = "user_id"

	// KeyRoles is the key for storing the authenticated user's roles in echo.Context.
	KeyRoles ContextKey = "roles"
)

// SetAuth stores the authenticated principal in echo.Context.
func SetAuth(c echo.Context, userID uuid.UUID, roles []string) {
	c.Set(string(KeyUserID), userID)
	c.Set(string(KeyRoles), roles)
}

// GetUserID returns the authenticated user ID, if any.
func GetUserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(string(KeyUserID)).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}

	return id, true
}

// HasRole reports whether the authenticated principal carries role.
func HasRole(c echo.Context, role string) bool {
	roles, _ := c.Get(string(KeyRoles)).([]string)
	for _, r := range roles {
		if r == role {
			return true
		}
	}

	return false
}
