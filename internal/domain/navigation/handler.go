package navigation

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
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
	// Read endpoints - all clinical roles
	readGroup := api.Group("", auth.RequireRole("admin", "navigator", "clinician", "viewer"))
	readGroup.GET("/patients/:id/navigation/steps", h.GetPatientSteps)
	readGroup.GET("/patients/:id/navigation/steps/stage/:stage", h.GetStepsByStage)
	readGroup.GET("/navigation/steps/:id", h.GetStep)
	readGroup.GET("/navigation/templates/:cancerType", h.GetTemplates)

	// Write endpoints - navigators and admins
	writeGroup := api.Group("", auth.RequireRole("admin", "navigator"))
	writeGroup.POST("/patients/:id/navigation/initialize", h.InitializeSteps)
	writeGroup.POST("/navigation/initialize-all", h.InitializeAllPatients)
	writeGroup.POST("/patients/:id/navigation/steps/stage/:stage", h.CreateMissingStepsForStage)
	writeGroup.POST("/navigation/steps", h.CreateStep)
	writeGroup.PATCH("/navigation/steps/:id", h.UpdateStep)
	writeGroup.DELETE("/navigation/steps/:id", h.DeleteStep)
	writeGroup.POST("/navigation/check-overdue", h.CheckOverdue)
	writeGroup.POST("/patients/:id/navigation/check-overdue", h.CheckOverdueForPatient)
}

func mapError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrStepNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "navigation step not found")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) InitializeSteps(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	steps, err := h.svc.InitializeSteps(c.Request().Context(), patientID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, steps)
}

func (h *Handler) InitializeAllPatients(c echo.Context) error {
	result, err := h.svc.InitializeAllPatientsSteps(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) GetPatientSteps(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	steps, err := h.svc.GetPatientSteps(c.Request().Context(), patientID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, steps)
}

func (h *Handler) GetStepsByStage(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	stage := strings.ToUpper(c.Param("stage"))
	steps, err := h.svc.GetStepsByJourneyStage(c.Request().Context(), patientID, stage)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, steps)
}

func (h *Handler) CreateMissingStepsForStage(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	stage := strings.ToUpper(c.Param("stage"))
	steps, err := h.svc.CreateMissingStepsForStage(c.Request().Context(), patientID, stage)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, steps)
}

func (h *Handler) GetStep(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	st, err := h.svc.GetStep(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) CreateStep(c echo.Context) error {
	var st Step
	if err := c.Bind(&st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateStep(c.Request().Context(), &st); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, st)
}

func (h *Handler) UpdateStep(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in UpdateStepInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st, err := h.svc.UpdateStep(c.Request().Context(), id, in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) DeleteStep(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteStep(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CheckOverdue(c echo.Context) error {
	result, err := h.svc.CheckOverdueSteps(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) CheckOverdueForPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	result, err := h.svc.CheckOverdueStepsForPatient(c.Request().Context(), patientID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) GetTemplates(c echo.Context) error {
	cancerType := c.Param("cancerType")
	palliative := c.QueryParam("palliative") == "true"
	return c.JSON(http.StatusOK, map[string]interface{}{
		"cancer_type": NormalizeCancerType(cancerType),
		"templates":   h.svc.Templates(cancerType, palliative),
	})
}
