package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/context"
)

// quietPrefixes are probe and scrape paths logged at debug only
var quietPrefixes = []string{"/health", "/metrics"}

// Logger writes one line per request. Server errors log at error, client errors at warn.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			req, res := c.Request(), c.Response()
			ctx := req.Context()
			log := logger.WithContext(ctx).WithFields(map[string]any{
				"request_id":  context.GetRequestID(ctx),
				"tenant_id":   context.GetTenantID(ctx),
				"user_id":     context.GetUserID(ctx),
				"method":      req.Method,
				"route":       c.Path(),
				"status":      res.Status,
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       res.Size,
			})

			switch {
			case res.Status >= http.StatusInternalServerError:
				log.Error("Request failed")
			case res.Status >= http.StatusBadRequest:
				log.Warn("Request rejected")
			case isQuiet(req.URL.Path):
				log.Debug("Request")
			default:
				log.Info("Request")
			}
			return nil
		}
	}
}

func isQuiet(path string) bool {
	for _, p := range quietPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
