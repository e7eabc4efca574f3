package utils

import (
	"github.com/labstack/echo/v4"

	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
)

// BindRequest decodes the request into T and validates it.
// Malformed bodies and failed rules are both InvalidArgument.
func BindRequest[T any](c echo.Context) (T, error) {
	var v T

	if err := c.Bind(&v); err != nil {
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			if m, ok := he.Message.(string); ok {
				msg = m
			}
		}
		return v, dedupeerrors.InvalidArgument("invalid request body: %s", msg)
	}

	v, err := Validate(v)
	if err != nil {
		return v, dedupeerrors.InvalidArgument("%s", err.Error())
	}

	return v, nil
}
