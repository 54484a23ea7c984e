package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"CryptoPulse/internal/model"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Pipeline is the set of operations the HTTP surface calls.
type Pipeline interface {
	GetLatestPrice(ctx context.Context, symbol string) (*model.PricePoint, error)
	RefreshPrice(ctx context.Context, symbol string) (*model.PricePoint, error)
	GetLatestForecast(ctx context.Context, symbol string) (*model.ForecastRecord, error)
	ForceForecast(ctx context.Context, symbol string) ([]*model.ForecastRecord, error)
	Symbols(ctx context.Context) ([]string, error)
	RecentPrices(ctx context.Context, symbol string, limit int) ([]*model.PricePoint, error)
	PriceHistory(ctx context.Context, symbol string, from, to time.Time) ([]*model.PricePoint, error)
	Forecasts(ctx context.Context, symbol string) ([]*model.ForecastRecord, error)
	ForecastsInRange(ctx context.Context, symbol string, from, to time.Time) ([]*model.ForecastRecord, error)
}

// Handler serves price and forecast routes.
type Handler struct {
	p   Pipeline
	log zerolog.Logger
}

func NewHandler(p Pipeline, log zerolog.Logger) *Handler {
	return &Handler{p: p, log: log}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	prices := e.Group("/prices")
	prices.GET("/symbols", h.Symbols)
	prices.GET("/:symbol/latest", h.LatestPrice)
	prices.GET("/:symbol/recent", h.RecentPrices)
	prices.GET("/:symbol/history", h.PriceHistory)
	prices.POST("/:symbol/refresh", h.RefreshPrice)

	forecasts := e.Group("/forecasts")
	forecasts.GET("/:symbol", h.Forecasts)
	forecasts.GET("/:symbol/latest", h.LatestForecast)
	forecasts.GET("/:symbol/range", h.ForecastRange)
	forecasts.POST("/:symbol/refresh", h.RefreshForecast)

	e.GET("/healthz", h.Health)
}

func (h *Handler) Symbols(c echo.Context) error {
	syms, err := h.p.Symbols(c.Request().Context())
	if err != nil {
		return h.fail(c, "symbols", err)
	}
	return listResponse(c, syms)
}

func (h *Handler) LatestPrice(c echo.Context) error {
	p, err := h.p.GetLatestPrice(c.Request().Context(), symbolParam(c))
	if err != nil {
		return h.fail(c, "latest price", err)
	}
	return successResponse(c, p)
}

func (h *Handler) RecentPrices(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return errorResponse(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
		}
		limit = n
	}
	ps, err := h.p.RecentPrices(c.Request().Context(), symbolParam(c), limit)
	if err != nil {
		return h.fail(c, "recent prices", err)
	}
	return listResponse(c, ps)
}

func (h *Handler) PriceHistory(c echo.Context) error {
	from, to, err := rangeParams(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}
	ps, err := h.p.PriceHistory(c.Request().Context(), symbolParam(c), from, to)
	if err != nil {
		return h.fail(c, "price history", err)
	}
	return listResponse(c, ps)
}

func (h *Handler) RefreshPrice(c echo.Context) error {
	p, err := h.p.RefreshPrice(c.Request().Context(), symbolParam(c))
	if err != nil {
		return h.fail(c, "refresh price", err)
	}
	return successResponse(c, p)
}

func (h *Handler) Forecasts(c echo.Context) error {
	fs, err := h.p.Forecasts(c.Request().Context(), symbolParam(c))
	if err != nil {
		return h.fail(c, "forecasts", err)
	}
	return listResponse(c, fs)
}

func (h *Handler) LatestForecast(c echo.Context) error {
	f, err := h.p.GetLatestForecast(c.Request().Context(), symbolParam(c))
	if err != nil {
		return h.fail(c, "latest forecast", err)
	}
	return successResponse(c, f)
}

func (h *Handler) ForecastRange(c echo.Context) error {
	from, to, err := rangeParams(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}
	fs, err := h.p.ForecastsInRange(c.Request().Context(), symbolParam(c), from, to)
	if err != nil {
		return h.fail(c, "forecast range", err)
	}
	return listResponse(c, fs)
}

func (h *Handler) RefreshForecast(c echo.Context) error {
	fs, err := h.p.ForceForecast(c.Request().Context(), symbolParam(c))
	if err != nil {
		return h.fail(c, "force forecast", err)
	}
	return listResponse(c, fs)
}

func (h *Handler) Health(c echo.Context) error {
	return successResponse(c, map[string]string{"state": "ok"})
}

func (h *Handler) fail(c echo.Context, op string, err error) error {
	status := statusFor(err)
	ev := h.log.Warn()
	if status >= http.StatusInternalServerError {
		ev = h.log.Error()
	}
	ev.Err(err).Str("op", op).Str("symbol", c.Param("symbol")).Int("status", status).Msg("request failed")
	return errorResponse(c, status, err)
}

func symbolParam(c echo.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
}

// rangeParams reads optional RFC 3339 start and end query parameters.
func rangeParams(c echo.Context) (from, to time.Time, err error) {
	if raw := c.QueryParam("start"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			return from, to, fmt.Errorf("invalid start %q: %w", raw, err)
		}
	}
	if raw := c.QueryParam("end"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			return from, to, fmt.Errorf("invalid end %q: %w", raw, err)
		}
	}
	return from, to, nil
}
