package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesbi/internal/core/apperror"
	appctx "salesbi/internal/core/context"
	"salesbi/pkg/logger"
)

type fakeValidator struct{}

func (fakeValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	switch token {
	case "reader":
		return &appctx.UserContext{Subject: "reader", Scopes: []string{"reports:read"}}, nil
	case "nobody":
		return &appctx.UserContext{Subject: "nobody"}, nil
	}
	return nil, errors.New("bad token")
}

type recordingObserver struct {
	routes []string
}

func (o *recordingObserver) ObserveRequest(_, route, status string, _ float64) {
	o.routes = append(o.routes, route+" "+status)
}

func newEngine(obs RequestObserver, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Trace(), Logger(logger.Nop(), obs), ErrorHandler(), Recovery())
	r.Use(extra...)
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandler(t *testing.T) {
	r := newEngine(nil)
	r.GET("/app", func(c *gin.Context) {
		_ = c.Error(apperror.NewNotFound("run", "42"))
	})
	r.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})

	rec := do(r, "/app", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperror.CodeNotFound, decode(t, rec)["code"])

	rec = do(r, "/plain", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.NotContains(t, rec.Body.String(), "boom", "internal causes are hidden")
}

func TestRecovery(t *testing.T) {
	r := newEngine(nil)
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	rec := do(r, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperror.CodeInternal, decode(t, rec)["code"])
}

func TestTrace_EchoesRequestID(t *testing.T) {
	r := newEngine(nil)
	r.GET("/ok", func(c *gin.Context) {
		c.String(http.StatusOK, appctx.GetRequestID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))
	assert.Equal(t, "req-1", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(HeaderTraceID))
}

func TestAuthAndScope(t *testing.T) {
	r := newEngine(nil, Auth(fakeValidator{}), RequireScope("reports:read"))
	r.GET("/reports", func(c *gin.Context) {
		c.String(http.StatusOK, appctx.GetSubject(c.Request.Context()))
	})

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"invalid token", "forged", http.StatusUnauthorized},
		{"missing scope", "nobody", http.StatusUnauthorized},
		{"ok", "reader", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, "/reports", tt.token)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	assert.Equal(t, "reader", do(r, "/reports", "reader").Body.String())
}

func TestRequireScope_PassesWithoutUser(t *testing.T) {
	r := newEngine(nil, RequireScope("reports:read"))
	r.GET("/open", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, do(r, "/open", "").Code)
}

func TestLogger_ObservesRoute(t *testing.T) {
	obs := &recordingObserver{}
	r := newEngine(obs)
	r.GET("/runs/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(r, "/runs/abc", "")
	do(r, "/missing", "")

	assert.Equal(t, []string{"/runs/:id 200", "unmatched 404"}, obs.routes)
}
