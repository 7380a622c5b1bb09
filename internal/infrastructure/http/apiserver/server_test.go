package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nutriscan/tracker/internal/infrastructure/config"
	"github.com/nutriscan/tracker/internal/infrastructure/http/realtime"
	"github.com/nutriscan/tracker/internal/infrastructure/monitoring"
	"github.com/nutriscan/tracker/internal/infrastructure/persistence/memory"
	"github.com/nutriscan/tracker/internal/infrastructure/security"
	"github.com/nutriscan/tracker/internal/ports/inbound"
	"github.com/nutriscan/tracker/pkg/healthcheck"
	"github.com/nutriscan/tracker/test/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

type APIServerTestSuite struct {
	suite.Suite
	tracker *testutils.MockTrackerService
	tokens  *security.TokenService
	server  *APIServer
	userID  uuid.UUID
}

func (s *APIServerTestSuite) SetupTest() {
	logger := zaptest.NewLogger(s.T())
	cfg := &config.Config{
		App: config.AppConfig{Name: "nutriscan-test"},
		Server: config.ServerConfig{
			Host:              "127.0.0.1",
			Port:              0,
			RequestTimeout:    5 * time.Second,
			MaxBodyBytes:      1 << 20,
			EnableCORS:        true,
			AllowedOrigins:    []string{"*"},
			EnableCompression: true,
		},
		Auth: config.AuthConfig{
			JWTSecret:     "server-test-secret",
			JWTIssuer:     "nutriscan",
			JWTExpiration: time.Hour,
		},
		Monitoring: config.MonitoringConfig{
			EnableMetrics:   true,
			MetricsPath:     "/metrics",
			HealthCheckPath: "/health",
		},
	}

	s.tracker = new(testutils.MockTrackerService)
	s.tokens = security.NewTokenService(cfg.Auth, memory.NewCacheRepository(), logger)
	s.userID = uuid.New()

	metrics := monitoring.NewMetrics(logger)
	health := healthcheck.New("test", logger)

	s.server = NewAPIServer(cfg, logger, Dependencies{
		Tracker: s.tracker,
		Tokens:  s.tokens,
		Hub:     realtime.NewHub(cfg.Server.AllowedOrigins, metrics, logger),
		Metrics: metrics,
		Health:  health,
	})
}

func (s *APIServerTestSuite) token(roles ...string) string {
	token, err := s.tokens.GenerateAccessToken(s.userID, roles)
	s.Require().NoError(err)
	return token
}

func (s *APIServerTestSuite) do(method, target, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (s *APIServerTestSuite) TestHealthAndMetricsArePublic() {
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/health", "", "").Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/health/live", "", "").Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/metrics", "", "").Code)

	rec := s.do(http.MethodGet, "/api/v1/openapi.yaml", "", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "NutriScan Tracker API")
}

func (s *APIServerTestSuite) TestTrackerRoutesRequireToken() {
	rec := s.do(http.MethodGet, "/api/v1/nutrition/progress", "", "")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.tracker.AssertNotCalled(s.T(), "GetProgressNutrition", mock.Anything, mock.Anything)
}

func (s *APIServerTestSuite) TestProgressRoutesToService() {
	s.tracker.On("GetProgressNutrition", mock.Anything, s.userID).
		Return(&inbound.TotalNutritionDTO{Calories: 1500, Proteins: 60}, nil)

	rec := s.do(http.MethodGet, "/api/v1/nutrition/progress", s.token(), "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("nosniff", rec.Header().Get("X-Content-Type-Options"))

	var body struct {
		Success bool                      `json:"success"`
		Data    inbound.TotalNutritionDTO `json:"data"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.True(body.Success)
	s.Equal(1500.0, body.Data.Calories)
	s.tracker.AssertExpectations(s.T())
}

func (s *APIServerTestSuite) TestAllHistoryRequiresAdmin() {
	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/api/v1/history", s.token(), "").Code)

	s.tracker.On("GetAllHistory", mock.Anything).Return([]inbound.HistoryDTO{}, nil)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/history", s.token(security.RoleAdmin), "").Code)
}

func (s *APIServerTestSuite) TestTrackMealRejectsNonJSON() {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tracker/meals", strings.NewReader("base64Image=abc"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.token())
	rec := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(rec, req)

	s.Equal(http.StatusUnsupportedMediaType, rec.Code)
	s.tracker.AssertNotCalled(s.T(), "CalorieTracker", mock.Anything, mock.Anything, mock.Anything)
}

func (s *APIServerTestSuite) TestLogoutRevokesToken() {
	token := s.token()
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/auth/logout", token, "").Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/history/me", token, "").Code)
}

func (s *APIServerTestSuite) TestUnknownRoute() {
	rec := s.do(http.MethodGet, "/api/v1/unknown", s.token(), "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func TestAPIServerTestSuite(t *testing.T) {
	suite.Run(t, new(APIServerTestSuite))
}

func TestNewCompressorPrefersBrotli(t *testing.T) {
	c := newCompressor()
	handler := c.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(strings.Repeat(`{"calories":1500}`, 100)))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "br, gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "br", rec.Header().Get("Content-Encoding"))
}
