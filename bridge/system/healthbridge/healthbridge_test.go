package healthbridge_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrazmi/allmyducks/bridge/scaffolding/mid"
	"github.com/jrazmi/allmyducks/bridge/system/healthbridge"
	"github.com/jrazmi/allmyducks/infrastructure/web"
	"github.com/jrazmi/allmyducks/sdk/logger"
	"github.com/stretchr/testify/assert"
)

func serve(check healthbridge.StatusCheck, path string) *httptest.ResponseRecorder {
	log := logger.NewDiscard()
	h := web.NewWebHandler(web.HandlerOptions{}, web.WithGlobalMiddleware(mid.Errors(log)))
	healthbridge.AddHttpRoutes(h.Group("/api"), healthbridge.Config{
		Log:      log,
		Service:  "allmyducks",
		Build:    "test",
		Database: check,
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(func(context.Context) error { return nil }, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"up"`)

	rec = serve(func(context.Context) error { return errors.New("dial tcp: refused") }, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}

func TestInfo(t *testing.T) {
	rec := serve(nil, "/api")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"service":"allmyducks"`)
	assert.Contains(t, rec.Body.String(), `"status":"running"`)
}
