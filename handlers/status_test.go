package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/moldpark_backend/middlewares"
	"github.com/mmdatafocus/moldpark_backend/monitor"
	"github.com/mmdatafocus/moldpark_backend/utils"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("handler-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStatus struct {
	pipelineCalls int
	healthErr     error
	lastUser      uint
	lastAdmin     bool
	err           error
}

func (f *fakeStatus) SystemStatus(context.Context) (monitor.SystemStatus, error) {
	return monitor.SystemStatus{System: monitor.SystemInfo{HealthScore: 90, Status: monitor.HealthExcellent}}, f.err
}

func (f *fakeStatus) Pipeline(context.Context) (monitor.Pipeline, error) {
	f.pipelineCalls++
	return monitor.Pipeline{TotalActiveOrders: 4, Stages: []monitor.PipelineStage{{Stage: "Received Orders", Count: 4, Percentage: 100}}}, f.err
}

func (f *fakeStatus) Alerts(context.Context) (monitor.AlertList, error) {
	return monitor.AlertList{Alerts: []monitor.Alert{}}, f.err
}

func (f *fakeStatus) HealthCheck(context.Context) (string, error) {
	if f.healthErr != nil {
		return "", f.healthErr
	}
	return "MoldPark system monitor\nSystem healthy, no issues detected.\n", nil
}

func (f *fakeStatus) NotificationStatus(_ context.Context, userID uint, isAdmin bool) (monitor.NotificationStatus, error) {
	f.lastUser, f.lastAdmin = userID, isAdmin
	return monitor.NotificationStatus{User: monitor.NotificationSummary{Total24h: 3}}, f.err
}

type memCache struct {
	data map[string][]byte
}

func (m *memCache) GetObject(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memCache) SetObject(_ context.Context, key string, obj interface{}, _ time.Duration) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = raw
	return nil
}

func newServer(t *testing.T, status StatusReader, opts ...StatusOption) *gin.Engine {
	t.Helper()
	logger, _ := test.NewNullLogger()
	r := gin.New()
	r.Use(middlewares.AuthMiddleware(secret))
	NewStatusHandler(status, logger, opts...).Register(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, id uint, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if id != 0 {
		tok, err := utils.JwtGenerate(secret, id, role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSystemStatusEndpoint(t *testing.T) {
	r := newServer(t, &fakeStatus{})

	w := do(t, r, http.MethodGet, "/api/system/status", 5, utils.RoleCenter)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 90.0, body["system"]["health_score"])

	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, "/api/system/status", 0, "").Code)
}

func TestEndpointErrors(t *testing.T) {
	r := newServer(t, &fakeStatus{err: errors.New("boom")})
	for _, path := range []string{"/api/system/status", "/api/production/pipeline", "/api/alerts", "/api/notifications/status"} {
		w := do(t, r, http.MethodGet, path, 5, utils.RoleCenter)
		assert.Equal(t, http.StatusInternalServerError, w.Code, path)
		assert.JSONEq(t, `{"error":"boom"}`, w.Body.String(), path)
	}
}

func TestPipelineIsCached(t *testing.T) {
	status := &fakeStatus{}
	r := newServer(t, status, WithCache(&memCache{}, time.Minute))

	for i := 0; i < 3; i++ {
		w := do(t, r, http.MethodGet, "/api/production/pipeline", 5, utils.RoleProducer)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"total_active_orders":4`)
	}
	assert.Equal(t, 1, status.pipelineCalls)
}

func TestAlertsEndpoint(t *testing.T) {
	r := newServer(t, &fakeStatus{})
	w := do(t, r, http.MethodGet, "/api/alerts", 5, utils.RoleCenter)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alerts":[]`)
}

func TestNotificationStatusUsesCaller(t *testing.T) {
	status := &fakeStatus{}
	r := newServer(t, status)

	w := do(t, r, http.MethodGet, "/api/notifications/status", 12, utils.RoleAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint(12), status.lastUser)
	assert.True(t, status.lastAdmin)
	assert.Contains(t, w.Body.String(), `"total_notifications_24h":3`)
}

func TestHealthCheckEndpoint(t *testing.T) {
	status := &fakeStatus{}
	r := newServer(t, status, WithHealthCheckLimit(time.Hour, 1))

	assert.Equal(t, http.StatusForbidden, do(t, r, http.MethodPost, "/api/health-check", 5, utils.RoleCenter).Code)

	w := do(t, r, http.MethodPost, "/api/health-check", 1, utils.RoleAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "System healthy")

	assert.Equal(t, http.StatusTooManyRequests, do(t, r, http.MethodPost, "/api/health-check", 1, utils.RoleAdmin).Code)
}

func TestHealthCheckDatabaseDown(t *testing.T) {
	status := &fakeStatus{healthErr: fmt.Errorf("%w: dial tcp", monitor.ErrDatabaseDown)}
	r := newServer(t, status)

	w := do(t, r, http.MethodPost, "/api/health-check", 1, utils.RoleAdmin)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "database unreachable")
}
