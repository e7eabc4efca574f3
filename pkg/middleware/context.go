package middleware

import (
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/context"
	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
)

const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
)

// Context copies the request id, tenant and caller headers onto the request context.
// A request id is generated when the caller sent none and echoed back either way.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			requestID := header(c, echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := context.SetRequestID(req.Context(), requestID)
			ctx = context.SetTenantID(ctx, header(c, HeaderTenantID))
			ctx = context.SetUserID(ctx, header(c, HeaderUserID))
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}

// RequireTenant rejects requests without a tenant
func RequireTenant() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if context.GetTenantID(c.Request().Context()) == "" {
				return dedupeerrors.InvalidArgument("missing %s header", HeaderTenantID)
			}
			return next(c)
		}
	}
}

func header(c echo.Context, name string) string {
	return strings.TrimSpace(c.Request().Header.Get(name))
}
