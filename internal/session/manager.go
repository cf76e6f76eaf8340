// Package session maps signed-in identities to their sync engines. One
// engine exists per session; the original portal kept one inbox per
// signed-in page, the service equivalent is a TTL registry.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/counselhub/inbox-sync/internal/inbox"
	"github.com/counselhub/inbox-sync/internal/model"
	"github.com/counselhub/inbox-sync/pkg/logger"
	"github.com/counselhub/inbox-sync/pkg/metrics"
)

// EngineFactory builds an engine for an identity.
type EngineFactory func(id model.Identity) *inbox.Engine

// Manager is the per-user engine registry.
type Manager struct {
	factory EngineFactory
	idleTTL time.Duration
	logger  *logger.Logger

	mu      sync.Mutex
	entries map[string]*entry
	stop    chan struct{}
	once    sync.Once
}

type entry struct {
	engine   *inbox.Engine
	lastSeen time.Time
}

// NewManager creates a registry with idle eviction.
func NewManager(factory EngineFactory, idleTTL time.Duration, log *logger.Logger) *Manager {
	m := &Manager{
		factory: factory,
		idleTTL: idleTTL,
		logger:  log,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Engine returns the engine for an identity, constructing one and loading
// its store on first use.
func (m *Manager) Engine(ctx context.Context, id model.Identity) (*inbox.Engine, error) {
	m.mu.Lock()
	if e, ok := m.entries[id.ID]; ok {
		e.lastSeen = time.Now()
		m.mu.Unlock()
		return e.engine, nil
	}
	m.mu.Unlock()

	eng := m.factory(id)
	if err := eng.Refresh(ctx); err != nil {
		// Not cached: the next request gets a fresh attempt.
		eng.Close()
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id.ID]; ok {
		// Lost the race to another request for the same user.
		eng.Close()
		e.lastSeen = time.Now()
		return e.engine, nil
	}
	m.entries[id.ID] = &entry{engine: eng, lastSeen: time.Now()}
	metrics.EnginesActive.Set(float64(len(m.entries)))
	m.logger.Info("session engine created",
		zap.String("user_id", id.ID),
		zap.String("role", string(id.Role)),
	)
	return eng, nil
}

// Evict drops a user's engine, ending the session's opened-set.
func (m *Manager) Evict(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[userID]; ok {
		e.engine.Close()
		delete(m.entries, userID)
		metrics.EnginesActive.Set(float64(len(m.entries)))
	}
}

// Close stops the sweeper and tears down all engines.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.stop) })
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		e.engine.Close()
		delete(m.entries, id)
	}
	metrics.EnginesActive.Set(0)
}

func (m *Manager) sweep() {
	interval := m.idleTTL / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-m.idleTTL)
			m.mu.Lock()
			for id, e := range m.entries {
				if e.lastSeen.Before(cutoff) {
					e.engine.Close()
					delete(m.entries, id)
					m.logger.Info("idle session engine evicted", zap.String("user_id", id))
				}
			}
			metrics.EnginesActive.Set(float64(len(m.entries)))
			m.mu.Unlock()
		}
	}
}
