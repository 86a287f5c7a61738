package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/database"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/repository"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	rows     []models.SystemHealth
	statsErr error
}

func (m *memoryCache) CacheSystemHealth(ctx context.Context, health []models.SystemHealth, expiration time.Duration) error {
	m.rows = health
	return nil
}

func (m *memoryCache) GetCachedSystemHealth(ctx context.Context) ([]models.SystemHealth, error) {
	if m.rows == nil {
		return nil, database.ErrCacheMiss
	}
	return m.rows, nil
}

func (m *memoryCache) GetCacheStats(ctx context.Context) (map[string]string, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return map[string]string{"keyspace_hits": "3", "keyspace_misses": "1"}, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func ok(ctx context.Context) error { return nil }

func TestCheckAll(t *testing.T) {
	repo := repository.NewSystemHealthRepository(testutil.NewDB(t))
	checker := NewHealthChecker([]Probe{
		{Name: "postgresql", Check: ok},
		{Name: "redis", Check: func(ctx context.Context) error { return errors.New("connection refused") }},
	}, nil, repo, quietLogger())

	health := checker.CheckAll(context.Background())
	assert.Equal(t, StatusUnhealthy, health.Status)
	require.Len(t, health.Services, 2)
	assert.Equal(t, StatusHealthy, health.Services[0].Status)
	assert.Equal(t, "connection refused", health.Services[1].Error)

	rows, err := repo.GetAllServicesHealth()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCurrent_PrefersCache(t *testing.T) {
	cache := &memoryCache{}
	calls := 0
	checker := NewHealthChecker([]Probe{{Name: "llm", Check: func(ctx context.Context) error {
		calls++
		return nil
	}}}, cache, nil, quietLogger())

	health := checker.Current(context.Background())
	assert.Equal(t, StatusHealthy, health.Status)
	assert.Equal(t, 1, calls)

	checker.refresh(context.Background(), time.Minute)
	assert.Equal(t, 2, calls)
	require.Len(t, cache.rows, 1)

	health = checker.Current(context.Background())
	assert.Equal(t, 2, calls, "served from cache")
	assert.Equal(t, "llm", health.Services[0].Name)
}

func TestCurrent_IncludesCacheStats(t *testing.T) {
	cache := &memoryCache{}
	checker := NewHealthChecker([]Probe{{Name: "redis", Check: ok}}, cache, nil, quietLogger())

	health := checker.Current(context.Background())
	assert.Equal(t, map[string]string{"keyspace_hits": "3", "keyspace_misses": "1"}, health.Cache)

	cache.statsErr = errors.New("NOAUTH")
	health = checker.Current(context.Background())
	assert.Nil(t, health.Cache)
	assert.Equal(t, StatusHealthy, health.Status)

	health = NewHealthChecker([]Probe{{Name: "redis", Check: ok}}, nil, nil, quietLogger()).Current(context.Background())
	assert.Nil(t, health.Cache)
}

func TestOverallStatus(t *testing.T) {
	assert.Equal(t, StatusHealthy, overallStatus(nil))
	assert.Equal(t, StatusDegraded, overallStatus([]ServiceHealth{{Status: StatusHealthy}, {Status: StatusDegraded}}))
	assert.Equal(t, StatusUnhealthy, overallStatus([]ServiceHealth{{Status: StatusDegraded}, {Status: StatusUnhealthy}}))
}

func TestHTTPProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	assert.NoError(t, HTTPProbe("retrieval", server.URL+"/health").Check(context.Background()))
	assert.EqualError(t, HTTPProbe("retrieval", server.URL+"/down").Check(context.Background()), "HTTP 503")
}
