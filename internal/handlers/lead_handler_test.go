package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apierrors "github.com/stwalsh4118/tokkosync/internal/errors"
	"github.com/stwalsh4118/tokkosync/internal/services"
)

func setupLeadRouter(svc *MockLeadService) *gin.Engine {
	handler := NewLeadHandler(svc)
	router := newTestRouter()
	router.POST("/api/v1/leads", handler.Create)
	return router
}

func TestLeadHandler_Create(t *testing.T) {
	svc := new(MockLeadService)
	svc.On("CreateLead", mock.Anything, services.LeadRequest{
		Name:       "Laura",
		Email:      "laura@example.com",
		Message:    "Hola",
		PropertyID: 12,
	}).Return(nil)

	w := doJSON(setupLeadRouter(svc), http.MethodPost, "/api/v1/leads",
		`{"propertyId":12,"name":"Laura","email":"laura@example.com","message":"Hola"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	svc.AssertExpectations(t)
}

func TestLeadHandler_Create_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing property", `{"name":"Laura","email":"laura@example.com"}`, "propertyId"},
		{"missing name", `{"propertyId":12,"email":"laura@example.com"}`, "name"},
		{"no way to reply", `{"propertyId":12,"name":"Laura"}`, "email"},
		{"bad email", `{"propertyId":12,"name":"Laura","email":"laura"}`, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockLeadService)
			w := doJSON(setupLeadRouter(svc), http.MethodPost, "/api/v1/leads", tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decodeError(t, w.Body.Bytes()).Error.Details, tt.field)
			svc.AssertNotCalled(t, "CreateLead", mock.Anything, mock.Anything)
		})
	}

	t.Run("phone is enough to reply", func(t *testing.T) {
		svc := new(MockLeadService)
		svc.On("CreateLead", mock.Anything, mock.Anything).Return(nil)

		w := doJSON(setupLeadRouter(svc), http.MethodPost, "/api/v1/leads",
			`{"propertyId":12,"name":"Laura","phone":"+54 11 5555 0000"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestLeadHandler_Create_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown property", services.ErrPropertyNotFound, http.StatusNotFound, apierrors.ErrNotFound},
		{"no credential", services.ErrNoCredential, http.StatusConflict, apierrors.ErrConflict},
		{"provider failure", errors.New("failed to forward lead: status 500"), http.StatusBadGateway, apierrors.ErrBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockLeadService)
			svc.On("CreateLead", mock.Anything, mock.Anything).Return(tt.err)

			w := doJSON(setupLeadRouter(svc), http.MethodPost, "/api/v1/leads",
				`{"propertyId":12,"name":"Laura","email":"laura@example.com"}`)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w.Body.Bytes()).Error.Code)
		})
	}
}
