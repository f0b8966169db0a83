package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/tokkosync/internal/errors"
	"github.com/stwalsh4118/tokkosync/internal/middleware"
	"github.com/stwalsh4118/tokkosync/internal/services"
)

// PhotoHandler triggers photo migrations.
type PhotoHandler struct {
	service services.PhotoMigrationService
}

// NewPhotoHandler creates a new PhotoHandler instance.
func NewPhotoHandler(service services.PhotoMigrationService) *PhotoHandler {
	return &PhotoHandler{service: service}
}

// MigrateQuery selects the photos to migrate.
type MigrateQuery struct {
	UserID string `form:"userId" binding:"omitempty,uuid"`
	All    bool   `form:"all"`
}

// MigrateResponse reports a migration run.
type MigrateResponse struct {
	Error    string `json:"error,omitempty"`
	Migrated int    `json:"migrated"`
	Failed   int    `json:"failed"`
	Success  bool   `json:"success"`
}

// Migrate handles POST /api/v1/photos/migrate?userId=|all=true.
func (h *PhotoHandler) Migrate(c *gin.Context) {
	var query MigrateQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindFailed(c, err, "Invalid query parameters")
		return
	}

	result, err := h.service.MigratePhotos(c.Request.Context(), services.MigrationScope{
		UserID: query.UserID,
		All:    query.All,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidScope):
			apierrors.BadRequest(c, "Provide userId or all=true", nil)
		case errors.Is(err, services.ErrUserNotFound):
			apierrors.NotFound(c, "User not found")
		default:
			if log := middleware.GetLogger(c); log != nil {
				log.Error("Photo migration aborted", err, map[string]interface{}{
					"migrated": result.Migrated,
					"failed":   result.Failed,
				})
			}
			c.JSON(http.StatusInternalServerError, MigrateResponse{
				Error:    err.Error(),
				Migrated: result.Migrated,
				Failed:   result.Failed,
			})
		}
		return
	}

	c.JSON(http.StatusOK, MigrateResponse{
		Migrated: result.Migrated,
		Failed:   result.Failed,
		Success:  true,
	})
}
