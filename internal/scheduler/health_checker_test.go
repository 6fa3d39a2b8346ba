package scheduler

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jobs/routineload/pkg/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHealthCheckerMarksBackendOffline(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Executors = []config.ExecutorConfig{{ID: 1, URL: srv.URL}}
	cfg.HealthCheck.Timeout = time.Second
	cfg.HealthCheck.FailureThreshold = 2
	d := NewDispatcher(*cfg, nil, zap.NewNop())
	h := NewHealthChecker(zap.NewNop(), *cfg, d)

	h.CheckAll()
	assert.True(t, d.IsOnline(1))
	h.CheckAll()
	assert.False(t, d.IsOnline(1))

	healthy.Store(true)
	h.CheckAll()
	assert.True(t, d.IsOnline(1))
}
