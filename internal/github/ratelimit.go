package github

import (
	"sync"

	"go.uber.org/zap"

	"github.com/repovault/repovault/consts"
	"github.com/repovault/repovault/pkg/logger"
)

// rateLimitMonitor watches the remaining quota reported with each API
// response and warns once per threshold crossing rather than on every
// subsequent call.
type rateLimitMonitor struct {
	mu       sync.Mutex
	warned   bool
	lastSeen int
}

func newRateLimitMonitor() *rateLimitMonitor {
	return &rateLimitMonitor{lastSeen: -1}
}

// observe records the remaining quota after a call
func (m *rateLimitMonitor) observe(method string, remaining int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastSeen = remaining
	if remaining >= consts.RateLimitWarnThreshold {
		m.warned = false
		return
	}
	if m.warned {
		return
	}
	m.warned = true
	logger.Warn("GitHub API quota is running low",
		zap.String("method", method),
		zap.Int("remaining", remaining),
	)
}

// remaining returns the last observed quota, -1 before any call
func (m *rateLimitMonitor) remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeen
}
