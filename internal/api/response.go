package api

import (
	"errors"
	"net/http"

	"CryptoPulse/internal/model"
	"CryptoPulse/internal/pipeline"

	"github.com/labstack/echo/v4"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ListData wraps list results.
type ListData struct {
	Rows  any `json:"rows"`
	Total int `json:"total"`
}

func dataResponse(c echo.Context, status int, data any) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func successResponse(c echo.Context, data any) error {
	return dataResponse(c, http.StatusOK, data)
}

func listResponse[T any](c echo.Context, rows []T) error {
	if rows == nil {
		rows = []T{}
	}
	return successResponse(c, ListData{Rows: rows, Total: len(rows)})
}

func errorResponse(c echo.Context, status int, err error) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Error:   err.Error(),
	})
}

// statusFor maps the pipeline error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNoDataAvailable), errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrForecastFailed):
		return http.StatusInternalServerError
	case errors.Is(err, model.ErrUpstreamFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
