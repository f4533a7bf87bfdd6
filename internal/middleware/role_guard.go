package middleware

import (
	"net/http"

	"agrimarket/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// AuthJWT のあとに置く。許可したロール以外は403
func RoleGuard(allowed ...model.Role) echo.MiddlewareFunc {
	set := make(map[model.Role]bool, len(allowed))
	for _, r := range allowed {
		set[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(model.Role)
			if !ok || role == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			if !set[role] {
				return c.JSON(http.StatusForbidden, errorJSON("forbidden"))
			}
			return next(c)
		}
	}
}
