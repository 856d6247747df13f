package records

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Jeewaka-MediCare/record-service/internal/platform/apperr"
	"github.com/Jeewaka-MediCare/record-service/internal/platform/auth"
	"github.com/Jeewaka-MediCare/record-service/pkg/pagination"
)

// Handler exposes the version chain over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the record endpoints on the given group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/patients/:id/records", h.create)
	g.GET("/patients/:id/records", h.listPatientRecords)
	g.GET("/records/:id", h.get)
	g.PUT("/records/:id", h.update)
	g.DELETE("/records/:id", h.delete)
	g.GET("/records/:id/versions", h.listVersions)
	g.GET("/records/:id/versions/:n", h.getVersion)
}

// recordResponse pairs the record shell with a version's content.
type recordResponse struct {
	Record  *Record  `json:"record"`
	Version *Version `json:"version"`
}

func (h *Handler) create(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rec, v, err := h.svc.Create(c.Request().Context(), actor, patientID, in)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusCreated, recordResponse{Record: rec, Version: v})
}

func (h *Handler) listPatientRecords(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	p := pagination.FromContext(c)
	recs, total, err := h.svc.ListPatientRecords(c.Request().Context(), actor, patientID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(recs, total, p.Limit, p.Offset))
}

func (h *Handler) get(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}

	rec, v, err := h.svc.Get(c.Request().Context(), actor, recordID)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, recordResponse{Record: rec, Version: v})
}

func (h *Handler) update(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}

	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rec, v, err := h.svc.Update(c.Request().Context(), actor, recordID, in)
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			// The loser of the race gets the winning version back so it
			// can re-merge and retry.
			return c.JSON(http.StatusConflict, map[string]interface{}{
				"error":           conflict.Error(),
				"current_version": conflict.Current,
			})
		}
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, recordResponse{Record: rec, Version: v})
}

func (h *Handler) delete(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}

	if err := h.svc.Delete(c.Request().Context(), actor, recordID); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) listVersions(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}

	p := pagination.FromContext(c)
	versions, total, err := h.svc.ListVersions(c.Request().Context(), actor, recordID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(versions, total, p.Limit, p.Offset))
}

func (h *Handler) getVersion(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}
	versionNo, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid version number")
	}
	// Version numbers start at 1, so a non-positive number is out of
	// range, not malformed.
	if versionNo < 1 {
		return echo.NewHTTPError(http.StatusNotFound, "version not found")
	}

	v, err := h.svc.GetVersion(c.Request().Context(), actor, recordID, versionNo)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, v)
}
