package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/notegraph/backend/internal/server/middleware"
	"github.com/notegraph/backend/pkg/store"
)

type messageResponse struct {
	Message string `json:"message"`
}

// app extracts the shared application state from the request context.
func app(c echo.Context) *middleware.App {
	return c.(*middleware.AppContext).App
}

// errorStatus maps store errors onto HTTP status codes. Anything
// unrecognized is an internal error.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUnknownEndpoint), errors.Is(err, store.ErrIntegrity):
		return http.StatusConflict
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(c echo.Context, err error, fallback string) error {
	status := errorStatus(err)
	msg := fallback
	if status != http.StatusInternalServerError {
		msg = err.Error()
	}
	return c.JSON(status, messageResponse{Message: msg})
}
