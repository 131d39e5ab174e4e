package httpkit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

type testJWTConfig struct{}

func (testJWTConfig) GetJWTAccessSecret() string { return testSecret }

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newAdminEngine() *gin.Engine {
	engine := gin.New()
	engine.GET("/admin", AuthRequired(testJWTConfig{}), RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return engine
}

func TestAuthRequired_AdminRoleAllowed(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "ops", "roles": []string{"admin"}}, testSecret)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	newAdminEngine().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestAuthRequired_MissingRoleForbidden(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "viewer", "roles": []string{"viewer"}}, testSecret)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	newAdminEngine().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAuthRequired_WrongSecretUnauthorized(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "ops", "roles": []string{"admin"}}, "other")
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	newAdminEngine().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleError_MapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperr.SourceMissing("data/usu_hogar_T125.txt", errors.New("no such file")), http.StatusNotFound},
		{apperr.Unavailable("no dataset loaded"), http.StatusServiceUnavailable},
		{apperr.Malformed("x.zip", 3, errors.New("bad")), http.StatusBadRequest},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		if !HandleError(c, tc.err) {
			t.Fatalf("expected error %v to be handled", tc.err)
		}
		if rec.Code != tc.status {
			t.Fatalf("expected status %d for %v, got %d", tc.status, tc.err, rec.Code)
		}
	}
}
