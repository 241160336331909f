package store

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-record-service/internal/observability"
)

// Pinger is the part of Store the health monitor needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthMonitor pings the store on a schedule and caches the result for /health.
// It starts healthy so an idle process that has not connected yet is not reported down.
type HealthMonitor struct {
	pinger      Pinger
	interval    time.Duration
	pingTimeout time.Duration
	logger      *zap.Logger
	scheduler   *gocron.Scheduler

	mu      sync.RWMutex
	healthy bool
	lastErr error
}

// NewHealthMonitor returns a monitor that has not been started.
func NewHealthMonitor(p Pinger, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	observability.StoreHealthy.Set(1)
	return &HealthMonitor{
		pinger:      p,
		interval:    interval,
		pingTimeout: 5 * time.Second,
		logger:      logger,
		scheduler:   gocron.NewScheduler(time.UTC),
		healthy:     true,
	}
}

// Start schedules the periodic ping. The first ping runs after one interval, which keeps
// the connection lazy. A non-positive interval leaves the monitor idle.
func (m *HealthMonitor) Start() error {
	if m.interval <= 0 {
		m.logger.Info("store health monitor disabled")
		return nil
	}
	_, err := m.scheduler.Every(m.interval).SingletonMode().WaitForSchedule().Do(m.check)
	if err != nil {
		return err
	}
	m.scheduler.StartAsync()
	return nil
}

// Stop cancels future pings.
func (m *HealthMonitor) Stop() {
	m.scheduler.Stop()
}

// Healthy reports the result of the most recent ping.
func (m *HealthMonitor) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy
}

// LastError returns the error from the most recent failed ping, or nil.
func (m *HealthMonitor) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *HealthMonitor) check() {
	ctx, cancel := context.WithTimeout(context.Background(), m.pingTimeout)
	defer cancel()
	err := m.pinger.Ping(ctx)

	m.mu.Lock()
	prev := m.healthy
	m.healthy = err == nil
	m.lastErr = err
	m.mu.Unlock()

	if err != nil {
		observability.StoreHealthy.Set(0)
		if prev {
			m.logger.Warn("store health check failed", zap.Error(err))
		}
		return
	}
	observability.StoreHealthy.Set(1)
	if !prev {
		m.logger.Info("store connection restored")
	}
}
