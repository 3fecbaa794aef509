package alert

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/onconav/onconav/internal/platform/auth"
	"github.com/onconav/onconav/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "navigator", "clinician", "viewer"))
	readGroup.GET("/alerts", h.List)
	readGroup.GET("/alerts/:id", h.Get)

	writeGroup := api.Group("", auth.RequireRole("admin", "navigator", "clinician"))
	writeGroup.POST("/alerts", h.Create)
	writeGroup.POST("/alerts/:id/acknowledge", h.Acknowledge)
	writeGroup.POST("/alerts/:id/resolve", h.Resolve)
}

func (h *Handler) Create(c echo.Context) error {
	var a Alert
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "alert not found")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)

	filter := ListFilter{
		Status:   strings.ToUpper(c.QueryParam("status")),
		Severity: strings.ToUpper(c.QueryParam("severity")),
		Type:     strings.ToUpper(c.QueryParam("type")),
	}
	if pid := c.QueryParam("patient_id"); pid != "" {
		id, err := uuid.Parse(pid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		filter.PatientID = &id
	}

	items, total, err := h.svc.List(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Acknowledge(c echo.Context) error {
	return h.transition(c, h.svc.Acknowledge)
}

func (h *Handler) Resolve(c echo.Context) error {
	return h.transition(c, h.svc.Resolve)
}

func (h *Handler) transition(c echo.Context, fn func(ctx context.Context, id uuid.UUID, by string) (*Alert, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	by, _ := c.Get("user_id").(string)
	a, err := fn(c.Request().Context(), id, by)
	if err != nil {
		if errors.Is(err, ErrAlertNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "alert not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}
