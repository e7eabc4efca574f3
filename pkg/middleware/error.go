package middleware

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/context"
	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Message   string         `json:"message"`
	Kind      string         `json:"kind,omitempty"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta"`
}

// Error renders domain errors with their mapped status. Anything unrecognised is a 500
// whose cause stays in the log, not the body.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		ctx := c.Request().Context()

		code, body := describe(err)
		body.RequestID = context.GetRequestID(ctx)
		body.TraceID = tracing.GetTraceID(ctx)

		log := logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"status": code,
			"kind":   body.Kind,
			"route":  c.Path(),
		})
		if code >= http.StatusInternalServerError {
			log.Error("Request errored")
		} else {
			log.Warn("Request errored")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func describe(err error) (int, ErrorResponse) {
	body := ErrorResponse{Message: http.StatusText(http.StatusInternalServerError), Meta: map[string]any{}}

	if de, ok := dedupeerrors.As(err); ok {
		body.Kind = string(de.Kind)
		err = de.ToHTTPError()
	}

	if httperror.IsHTTPError(err) {
		he := httperror.ToHTTPError(err)
		body.Message = he.Error()
		if he.Meta != nil {
			body.Meta = he.Meta
		}
		return httperror.GetStatusCode(err), body
	}

	ee, ok := err.(*echo.HTTPError)
	if !ok {
		return http.StatusInternalServerError, body
	}
	body.Message = http.StatusText(ee.Code)
	if msg, ok := ee.Message.(string); ok {
		body.Message = msg
	}
	return ee.Code, body
}
