package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/stwalsh4118/tokkosync/internal/errors"
	"github.com/stwalsh4118/tokkosync/internal/middleware"
	"github.com/stwalsh4118/tokkosync/internal/models"
	"github.com/stwalsh4118/tokkosync/internal/services"
)

// SyncHandler handles feed synchronization requests.
type SyncHandler struct {
	service services.SyncService
}

// NewSyncHandler creates a new SyncHandler instance.
func NewSyncHandler(service services.SyncService) *SyncHandler {
	return &SyncHandler{service: service}
}

// SyncRequest is the body of POST /api/v1/tokko/sync.
type SyncRequest struct {
	Limit  *int   `json:"limit"`
	APIKey string `json:"apiKey" binding:"required,min=10"`
	UserID string `json:"userId" binding:"omitempty,uuid"`
	Async  bool   `json:"async"`
}

// CheckRequest is the body of POST /api/v1/tokko/check.
type CheckRequest struct {
	APIKey string `json:"apiKey" binding:"required"`
}

// StatusQuery holds the query of GET /api/v1/tokko/sync/status.
type StatusQuery struct {
	CredentialHash string `form:"credentialHash" binding:"required,min=16,max=64,hexadecimal"`
}

// SyncResponse is returned when a synchronous run finishes.
type SyncResponse struct {
	*services.SyncResult
	Success bool `json:"success"`
}

// SyncFailureResponse carries the partial counts of a failed run.
type SyncFailureResponse struct {
	*services.SyncResult
	Error   string `json:"error"`
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// SyncStartResponse is returned when a run is queued.
type SyncStartResponse struct {
	UserID         string            `json:"userId"`
	CredentialHash string            `json:"credentialHash"`
	Status         models.SyncStatus `json:"status"`
	Success        bool              `json:"success"`
}

// CheckResponse reports whether a credential belongs to a known user.
type CheckResponse struct {
	UserID string `json:"userId,omitempty"`
	Exists bool   `json:"exists"`
}

// Sync handles POST /api/v1/tokko/sync.
// With async set the run is queued and 202 is returned immediately.
func (h *SyncHandler) Sync(c *gin.Context) {
	var req SyncRequest
	if !bindJSON(c, &req) {
		return
	}

	serviceReq := services.SyncRequest{
		Credential: req.APIKey,
		Limit:      req.Limit,
		UserID:     req.UserID,
	}

	if req.Async {
		start, err := h.service.StartSync(c.Request.Context(), serviceReq)
		if err != nil {
			h.syncError(c, err, nil)
			return
		}
		c.JSON(http.StatusAccepted, SyncStartResponse{
			UserID:         start.UserID,
			CredentialHash: start.CredentialHash,
			Status:         start.Status,
			Success:        true,
		})
		return
	}

	result, err := h.service.SyncTokkoData(c.Request.Context(), serviceReq)
	if err != nil {
		h.syncError(c, err, result)
		return
	}

	c.JSON(http.StatusOK, SyncResponse{SyncResult: result, Success: true})
}

func (h *SyncHandler) syncError(c *gin.Context, err error, partial *services.SyncResult) {
	switch {
	case errors.Is(err, services.ErrInvalidCredential):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, "User not found")
	case errors.Is(err, services.ErrSyncInProgress):
		apierrors.Conflict(c, "A sync is already running for this account")
	case errors.Is(err, services.ErrQueueFull):
		apierrors.ServiceUnavailable(c, "Sync queue is full, try again later", err)
	default:
		if log := middleware.GetLogger(c); log != nil {
			log.Error("Sync failed", err, nil)
		}
		if partial == nil {
			partial = &services.SyncResult{Errors: []string{}}
		}
		c.JSON(http.StatusInternalServerError, SyncFailureResponse{
			SyncResult: partial,
			Error:      "SYNC_FAILED",
			Message:    err.Error(),
		})
	}
}

// Check handles POST /api/v1/tokko/check.
func (h *SyncHandler) Check(c *gin.Context) {
	var req CheckRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, exists, err := h.service.CheckExistingUser(c.Request.Context(), req.APIKey)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredential) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to check credential", err)
		return
	}

	c.JSON(http.StatusOK, CheckResponse{UserID: userID, Exists: exists})
}

// Status handles GET /api/v1/tokko/sync/status.
func (h *SyncHandler) Status(c *gin.Context) {
	var query StatusQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindFailed(c, err, "Invalid query parameters")
		return
	}

	view, err := h.service.GetSyncStatus(c.Request.Context(), query.CredentialHash)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to load sync status", err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// bindJSON binds the request body and writes the 400 itself on failure.
func bindJSON(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		bindFailed(c, err, "Invalid request body")
		return false
	}
	return true
}

func bindFailed(c *gin.Context, err error, message string) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apierrors.ValidationError(c, validationErrors)
		return
	}
	apierrors.BadRequest(c, message, nil)
}
