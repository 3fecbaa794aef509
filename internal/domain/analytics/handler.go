package analytics

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/onconav/onconav/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "navigator", "clinician", "viewer"))
	readGroup.GET("/analytics/navigation", h.NavigationMetrics)
	readGroup.GET("/analytics/critical-patients", h.CriticalPatients)
	readGroup.GET("/analytics/critical-timelines", h.CriticalTimelines)
	readGroup.GET("/analytics/dashboard", h.Dashboard)
}

func (h *Handler) NavigationMetrics(c echo.Context) error {
	m, err := h.svc.GetNavigationMetrics(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) CriticalPatients(c echo.Context) error {
	items, err := h.svc.GetPatientsWithCriticalSteps(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patients": items,
		"total":    len(items),
	})
}

func (h *Handler) CriticalTimelines(c echo.Context) error {
	report, err := h.svc.GetCriticalTimelines(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) Dashboard(c echo.Context) error {
	m, err := h.svc.GetDashboardMetrics(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}
