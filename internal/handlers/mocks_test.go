package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stwalsh4118/tokkosync/internal/logger"
	"github.com/stwalsh4118/tokkosync/internal/middleware"
	"github.com/stwalsh4118/tokkosync/internal/rates"
	"github.com/stwalsh4118/tokkosync/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
	UseJSONFieldNames()
}

// MockSyncService is a mock implementation of services.SyncService.
type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) SyncTokkoData(ctx context.Context, req services.SyncRequest) (*services.SyncResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*services.SyncResult)
	return result, args.Error(1)
}

func (m *MockSyncService) StartSync(ctx context.Context, req services.SyncRequest) (*services.SyncStart, error) {
	args := m.Called(ctx, req)
	start, _ := args.Get(0).(*services.SyncStart)
	return start, args.Error(1)
}

func (m *MockSyncService) CheckExistingUser(ctx context.Context, credential string) (string, bool, error) {
	args := m.Called(ctx, credential)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockSyncService) GetSyncStatus(ctx context.Context, credentialHash string) (services.SyncStatusView, error) {
	args := m.Called(ctx, credentialHash)
	view, _ := args.Get(0).(services.SyncStatusView)
	return view, args.Error(1)
}

// MockPhotoService is a mock implementation of services.PhotoMigrationService.
type MockPhotoService struct {
	mock.Mock
}

func (m *MockPhotoService) MigratePhotos(ctx context.Context, scope services.MigrationScope) (services.MigrationResult, error) {
	args := m.Called(ctx, scope)
	result, _ := args.Get(0).(services.MigrationResult)
	return result, args.Error(1)
}

// MockLeadService is a mock implementation of services.LeadService.
type MockLeadService struct {
	mock.Mock
}

func (m *MockLeadService) CreateLead(ctx context.Context, req services.LeadRequest) error {
	return m.Called(ctx, req).Error(0)
}

// MockRateSource is a mock implementation of RateSource.
type MockRateSource struct {
	mock.Mock
}

func (m *MockRateSource) Get(ctx context.Context) (rates.Rate, error) {
	args := m.Called(ctx)
	rate, _ := args.Get(0).(rates.Rate)
	return rate, args.Error(1)
}

// newTestRouter returns a router with the request ID and logger middleware
// the error envelopes rely on.
func newTestRouter() *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Nop()))
	return router
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
