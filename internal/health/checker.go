package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	// slowThreshold marks a dependency degraded when it answers this slowly.
	slowThreshold = 2 * time.Second
	probeTimeout  = 10 * time.Second
)

// Probe checks one dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Cache holds the latest health snapshot. database.Cache implements it.
type Cache interface {
	CacheSystemHealth(ctx context.Context, health []models.SystemHealth, expiration time.Duration) error
	GetCachedSystemHealth(ctx context.Context) ([]models.SystemHealth, error)
	GetCacheStats(ctx context.Context) (map[string]string, error)
}

// HealthChecker manages health checks for all dependencies
type HealthChecker struct {
	probes     []Probe
	cache      Cache
	healthRepo models.SystemHealthRepository
	logger     *logrus.Logger
	startedAt  time.Time
}

func NewHealthChecker(probes []Probe, cache Cache, healthRepo models.SystemHealthRepository, logger *logrus.Logger) *HealthChecker {
	return &HealthChecker{
		probes:     probes,
		cache:      cache,
		healthRepo: healthRepo,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// ServiceHealth represents the health status of a dependency
type ServiceHealth struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	ResponseTime int    `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
	LastChecked  string `json:"last_checked"`
}

// OverallHealth represents the overall system health
type OverallHealth struct {
	Status   string            `json:"status"`
	Services []ServiceHealth   `json:"services"`
	Uptime   string            `json:"uptime"`
	Cache    map[string]string `json:"cache,omitempty"`
}

func (h *HealthChecker) check(ctx context.Context, probe Probe) ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := probe.Check(ctx)
	elapsed := time.Since(start)

	status := StatusHealthy
	errorMsg := ""
	switch {
	case err != nil:
		status = StatusUnhealthy
		errorMsg = err.Error()
		h.logger.WithError(err).WithField("service", probe.Name).Error("Health check failed")
	case elapsed > slowThreshold:
		status = StatusDegraded
	}

	if h.healthRepo != nil {
		if err := h.healthRepo.UpdateServiceHealth(probe.Name, status, int(elapsed.Milliseconds()), errorMsg); err != nil {
			h.logger.WithError(err).Warn("Failed to record health check")
		}
	}

	return ServiceHealth{
		Name:         probe.Name,
		Status:       status,
		ResponseTime: int(elapsed.Milliseconds()),
		Error:        errorMsg,
		LastChecked:  time.Now().UTC().Format(time.RFC3339),
	}
}

// CheckAll probes every dependency concurrently.
func (h *HealthChecker) CheckAll(ctx context.Context) OverallHealth {
	services := make([]ServiceHealth, len(h.probes))

	var wg sync.WaitGroup
	for i, probe := range h.probes {
		wg.Add(1)
		go func(i int, probe Probe) {
			defer wg.Done()
			services[i] = h.check(ctx, probe)
		}(i, probe)
	}
	wg.Wait()

	return OverallHealth{
		Status:   overallStatus(services),
		Services: services,
		Uptime:   h.uptime(),
	}
}

// CheckCached returns the last snapshot written by PeriodicHealthCheck.
func (h *HealthChecker) CheckCached(ctx context.Context) (*OverallHealth, error) {
	if h.cache == nil {
		return nil, fmt.Errorf("health cache not configured")
	}
	cached, err := h.cache.GetCachedSystemHealth(ctx)
	if err != nil {
		return nil, err
	}

	services := make([]ServiceHealth, len(cached))
	for i, row := range cached {
		services[i] = ServiceHealth{
			Name:         row.ServiceName,
			Status:       row.Status,
			ResponseTime: row.ResponseTimeMs,
			Error:        row.ErrorMessage,
			LastChecked:  row.CheckedAt.UTC().Format(time.RFC3339),
		}
	}

	return &OverallHealth{
		Status:   overallStatus(services),
		Services: services,
		Uptime:   h.uptime(),
	}, nil
}

// Current prefers the cached snapshot and probes directly on a miss. Cache
// hit counters are attached when the cache answers.
func (h *HealthChecker) Current(ctx context.Context) OverallHealth {
	var current OverallHealth
	if cached, err := h.CheckCached(ctx); err == nil {
		current = *cached
	} else {
		current = h.CheckAll(ctx)
	}

	if h.cache != nil {
		stats, err := h.cache.GetCacheStats(ctx)
		if err != nil {
			h.logger.WithError(err).Debug("Cache stats unavailable")
		} else {
			current.Cache = stats
		}
	}
	return current
}

func overallStatus(services []ServiceHealth) string {
	status := StatusHealthy
	for _, service := range services {
		if service.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if service.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}

func (h *HealthChecker) uptime() string {
	return time.Since(h.startedAt).Round(time.Second).String()
}

// PeriodicHealthCheck refreshes the cached snapshot until ctx is done.
func (h *HealthChecker) PeriodicHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.refresh(ctx, interval)
		}
	}
}

func (h *HealthChecker) refresh(ctx context.Context, interval time.Duration) {
	health := h.CheckAll(ctx)
	if h.cache == nil {
		return
	}

	rows := make([]models.SystemHealth, len(health.Services))
	for i, service := range health.Services {
		checkedAt, _ := time.Parse(time.RFC3339, service.LastChecked)
		rows[i] = models.SystemHealth{
			ServiceName:    service.Name,
			Status:         service.Status,
			ResponseTimeMs: service.ResponseTime,
			ErrorMessage:   service.Error,
			CheckedAt:      checkedAt,
		}
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.cache.CacheSystemHealth(cacheCtx, rows, 2*interval); err != nil {
		h.logger.WithError(err).Error("Failed to cache health status")
	}

	h.logger.WithField("status", health.Status).Debug("Periodic health check completed")
}

// HTTPProbe reports a dependency healthy when GET url answers below 400.
func HTTPProbe(name, url string) Probe {
	client := &http.Client{Timeout: probeTimeout}
	return Probe{
		Name: name,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}
			return nil
		},
	}
}
