package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// Check reports whether a dependency is usable; pgxpool.Pool.Ping fits.
type Check func(ctx context.Context) error

type Manager struct {
	ready   atomic.Bool
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
}

func NewManager(initialReady bool) *Manager {
	m := &Manager{
		checks:  map[string]Check{},
		timeout: 2 * time.Second,
	}
	m.ready.Store(initialReady)
	return m
}

func (m *Manager) SetReady(ready bool) {
	m.ready.Store(ready)
}

func (m *Manager) AddCheck(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Ready returns the names of failing checks; an empty result means ready.
func (m *Manager) Ready(ctx context.Context) (bool, []string) {
	if !m.ready.Load() {
		return false, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var failing []string
	for name, check := range m.checks {
		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := check(checkCtx)
		cancel()
		if err != nil {
			failing = append(failing, name)
		}
	}
	return len(failing) == 0, failing
}

func LivenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ReadinessHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, failing := m.Ready(c.Request.Context())
		if ok {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		body := gin.H{"status": "not_ready"}
		if len(failing) > 0 {
			body["failing"] = failing
		}
		c.JSON(http.StatusServiceUnavailable, body)
	}
}

// Register mounts /healthz and /readyz.
func Register(r gin.IRoutes, m *Manager) {
	r.GET("/healthz", LivenessHandler)
	r.GET("/readyz", ReadinessHandler(m))
}
