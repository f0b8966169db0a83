package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/tokkosync/internal/errors"
	"github.com/stwalsh4118/tokkosync/internal/services"
)

// LeadHandler forwards inquiries to the provider.
type LeadHandler struct {
	service services.LeadService
}

// NewLeadHandler creates a new LeadHandler instance.
func NewLeadHandler(service services.LeadService) *LeadHandler {
	return &LeadHandler{service: service}
}

// LeadRequest is the body of POST /api/v1/leads.
type LeadRequest struct {
	Name       string `json:"name" binding:"required,max=200"`
	Email      string `json:"email" binding:"required_without=Phone,omitempty,email"`
	Phone      string `json:"phone" binding:"max=50"`
	Message    string `json:"message" binding:"max=2000"`
	PropertyID int64  `json:"propertyId" binding:"required,gt=0"`
}

// Create handles POST /api/v1/leads.
func (h *LeadHandler) Create(c *gin.Context) {
	var req LeadRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.service.CreateLead(c.Request.Context(), services.LeadRequest{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Message:    req.Message,
		PropertyID: req.PropertyID,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPropertyNotFound):
			apierrors.NotFound(c, "Property not found")
		case errors.Is(err, services.ErrNoCredential):
			apierrors.Conflict(c, "The property's account cannot receive leads")
		default:
			apierrors.BadGateway(c, "Failed to forward lead", err)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}
