package core

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aevrHQ/ui/cache"
	"github.com/aevrHQ/ui/config"
	"github.com/aevrHQ/ui/internal/auth"
	"github.com/aevrHQ/ui/internal/metrics"
	"github.com/aevrHQ/ui/queue"
	"github.com/aevrHQ/ui/storage"
)

func newTestRouter(t *testing.T, jwt *auth.JWTService, providers ...storage.ProviderConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, _ := test.NewNullLogger()
	registry, err := storage.NewRegistry(storage.NewFactory(storage.Deps{Logger: logger}), storage.RegistryConfig{
		Providers: providers,
	}, logger)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	q := queue.New(2, queue.WithLogger(logger), queue.OnSettle(m.ObserveSettlement))
	require.NoError(t, m.RegisterQueue(q))

	memCache, err := cache.NewProvider(cache.Config{Type: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = memCache.Close() })

	cfg := config.Default()
	cfg.RateLimitRPS = 1000
	cfg.RateLimitBurst = 1000

	router, cleanup := NewRouter(&RouterDependencies{
		Config:   cfg,
		Registry: registry,
		Queue:    q,
		Cache:    memCache,
		Metrics:  m,
		Gatherer: reg,
		JWT:      jwt,
		Logger:   logger,
	})
	t.Cleanup(cleanup)
	return router
}

func do(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, name, content string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, nil, storage.ProviderConfig{Type: storage.TypeBase64})

	w := do(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "disabled", body.Checks["database"])
	assert.Equal(t, "ok", body.Checks["cache"])
	assert.Equal(t, "ok", body.Checks["providers"])
}

func TestHealthCheck_NoProviders(t *testing.T) {
	router := newTestRouter(t, nil)

	w := do(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestVersion(t *testing.T) {
	router := newTestRouter(t, nil)

	w := do(router, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), config.Version)
}

func TestUploadThroughRouter(t *testing.T) {
	router := newTestRouter(t, nil, storage.ProviderConfig{Name: "preview", Type: storage.TypeBase64})

	w := do(router, uploadRequest(t, "hello.txt", "hello"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var env struct {
		Data struct {
			Provider string         `json:"provider"`
			Success  bool           `json:"success"`
			Data     map[string]any `json:"data"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Data.Success)
	assert.Equal(t, "preview", env.Data.Provider)
	assert.Equal(t, "aGVsbG8=", env.Data.Data["base64"])

	// 结算指标与请求指标都应出现在 /metrics
	w = do(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	metricsText := w.Body.String()
	assert.Contains(t, metricsText, `uploadkit_uploads_total{outcome="success",provider="preview"} 1`)
	assert.Contains(t, metricsText, "uploadkit_queue_limit 2")
	assert.Contains(t, metricsText, `route="/api/v1/uploads"`)
}

func TestUploadRequiresTokenWhenAuthEnabled(t *testing.T) {
	svc, err := auth.NewJWTService(strings.Repeat("s", 32), time.Hour)
	require.NoError(t, err)
	router := newTestRouter(t, svc, storage.ProviderConfig{Type: storage.TypeBase64})

	w := do(router, uploadRequest(t, "a.txt", "a"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _, err := svc.GenerateAccessToken("tester", "")
	require.NoError(t, err)
	req := uploadRequest(t, "a.txt", "a")
	req.Header.Set("Authorization", "Bearer "+token)
	w = do(router, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// 健康检查不需要认证
	w = do(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.ServerPort = 9999

	srv, cleanup := NewServer(&RouterDependencies{Config: cfg})
	defer cleanup()

	assert.Equal(t, "127.0.0.1:9999", srv.Addr)
	assert.Equal(t, cfg.ServerReadTimeout, srv.ReadTimeout)
	assert.NotNil(t, srv.Handler)
}
