package audit

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Jeewaka-MediCare/record-service/internal/platform/apperr"
	"github.com/Jeewaka-MediCare/record-service/internal/platform/auth"
	"github.com/Jeewaka-MediCare/record-service/pkg/pagination"
)

// Handler exposes the audit trail over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the audit endpoints on the given group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/records/:id/audit", h.recordTrail)
	g.GET("/patients/:id/audit", h.patientTrail)
	g.GET("/doctors/:id/activity", h.doctorActivity)
}

func (h *Handler) recordTrail(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}

	p := pagination.FromContext(c)
	entries, total, err := h.svc.RecordTrail(c.Request().Context(), actor, recordID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, p.Limit, p.Offset))
}

func (h *Handler) patientTrail(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	opts, err := queryOptions(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	entries, total, err := h.svc.PatientTrail(c.Request().Context(), actor, patientID, opts)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, opts.Limit, opts.Offset))
}

func (h *Handler) doctorActivity(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}

	opts, err := queryOptions(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	entries, total, err := h.svc.DoctorActivity(c.Request().Context(), actor, doctorID, opts)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, opts.Limit, opts.Offset))
}

// queryOptions combines pagination with the optional from/to date range
// (RFC 3339 timestamps).
func queryOptions(c echo.Context) (QueryOptions, error) {
	p := pagination.FromContext(c)
	opts := QueryOptions{Limit: p.Limit, Offset: p.Offset}

	if raw := c.QueryParam("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, errors.New("invalid from timestamp")
		}
		opts.From = &t
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, errors.New("invalid to timestamp")
		}
		opts.To = &t
	}
	return opts, nil
}
