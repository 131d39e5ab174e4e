package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	apphttp "github.com/JoacoLucen/EPH-Insight-App/internal/http"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"
)

type testConfig struct{}

func (testConfig) GetHTTPAddr() string        { return ":0" }
func (testConfig) GetCORSAllowAll() bool      { return false }
func (testConfig) GetCORSOrigins() []string   { return []string{"http://localhost:5173"} }
func (testConfig) GetCORSAllowCreds() bool    { return true }
func (testConfig) GetJWTAccessSecret() string { return "test-secret" }
func (testConfig) GetRateLimitRPS() float64   { return 1000 }
func (testConfig) GetRateLimitBurst() int     { return 1000 }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type pingModule struct{}

func (pingModule) Name() string { return "ping" }

func (pingModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	ctx.Admin.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "admin pong") })
}

func newTestEngine(dataset apphttp.HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(&apphttp.App{
		Config:  testConfig{},
		Logger:  logger.Discard(),
		Health:  pinger{},
		Dataset: dataset,
		Modules: []apphttp.Module{pingModule{}},
	})
}

func serve(engine *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHealth(t *testing.T) {
	w := serve(newTestEngine(pinger{}), "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestReady_FailsUntilDatasetLoaded(t *testing.T) {
	w := serve(newTestEngine(pinger{err: errors.New("dataset not loaded yet")}), "/api/ready")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	w = serve(newTestEngine(pinger{}), "/api/ready")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestModuleRoutes(t *testing.T) {
	engine := newTestEngine(pinger{})

	if w := serve(engine, "/api/v1/ping"); w.Code != http.StatusOK {
		t.Fatalf("expected public route to answer 200, got %d", w.Code)
	}
	if w := serve(engine, "/api/v1/admin/ping"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected admin route to require a token, got %d", w.Code)
	}
}

func TestResponsesCarryRequestID(t *testing.T) {
	w := serve(newTestEngine(pinger{}), "/api/health")
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
}
