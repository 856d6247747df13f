package backup

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Jeewaka-MediCare/record-service/internal/platform/apperr"
	"github.com/Jeewaka-MediCare/record-service/internal/platform/auth"
	"github.com/Jeewaka-MediCare/record-service/pkg/pagination"
)

// Handler exposes the backup and export engine over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the backup endpoints on the given group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/records/:id/backup", h.backupRecord)
	g.GET("/patients/:id/backups", h.listPatientBackups)
	g.POST("/patients/:id/export", h.exportPatientRecords)
	g.GET("/admin/backup-stats/:id", h.adminBackupStats, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) backupRecord(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}

	b, created, err := h.svc.BackupRecord(c.Request().Context(), actor, recordID)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, b)
}

func (h *Handler) listPatientBackups(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	p := pagination.FromContext(c)
	backups, total, err := h.svc.ListPatientBackups(c.Request().Context(), actor, patientID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(backups, total, p.Limit, p.Offset))
}

func (h *Handler) exportPatientRecords(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	bundle, err := h.svc.ExportPatientRecords(c.Request().Context(), actor, patientID)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, bundle)
}

func (h *Handler) adminBackupStats(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	stats, err := h.svc.AdminBackupStats(c.Request().Context(), actor, patientID)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}
	return c.JSON(http.StatusOK, stats)
}
