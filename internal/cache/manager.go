package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shipment-tracking/internal/carriers"
	"shipment-tracking/internal/database"
)

// cachedResult is an in-memory cached tracking result with expiry
type cachedResult struct {
	result    carriers.TrackingResult
	expiresAt time.Time
}

func (c *cachedResult) expired() bool {
	return time.Now().After(c.expiresAt)
}

// Manager layers an in-memory cache over the persistent tracking cache, so
// repeated runs within the TTL skip the carrier fetch entirely. Database
// errors degrade into cache misses; the cache never fails a run.
type Manager struct {
	store    *database.TrackingCacheStore
	memory   sync.Map // map[string]*cachedResult
	disabled bool
	ttl      time.Duration
	logger   *slog.Logger

	// Cleanup goroutine control
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a cache manager. A nil store keeps results in memory
// only; disabled makes every lookup a miss.
func NewManager(store *database.TrackingCacheStore, disabled bool, ttl time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	manager := &Manager{
		store:    store,
		disabled: disabled,
		ttl:      ttl,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	if !disabled {
		if err := manager.loadFromDatabase(); err != nil {
			logger.Warn("Failed to load tracking cache from database", "error", err)
		}
		go manager.cleanupLoop()
	}

	return manager
}

// Get retrieves a cached tracking result by tracking number.
func (m *Manager) Get(trackingNumber string) (carriers.TrackingResult, bool) {
	if m.disabled {
		return carriers.TrackingResult{}, false
	}

	if value, ok := m.memory.Load(trackingNumber); ok {
		cached := value.(*cachedResult)
		if !cached.expired() {
			return cached.result, true
		}
		m.memory.Delete(trackingNumber)
	}

	if m.store == nil {
		return carriers.TrackingResult{}, false
	}

	result, err := m.store.Get(trackingNumber)
	if err != nil {
		m.logger.Warn("Tracking cache read failed", "tracking_number", trackingNumber, "error", err)
		return carriers.TrackingResult{}, false
	}
	if result == nil {
		return carriers.TrackingResult{}, false
	}

	m.memory.Store(trackingNumber, &cachedResult{
		result:    *result,
		expiresAt: time.Now().Add(m.ttl),
	})
	return *result, true
}

// Set stores a tracking result in memory and, when available, the database.
func (m *Manager) Set(trackingNumber string, result carriers.TrackingResult) {
	if m.disabled {
		return
	}

	if m.store != nil {
		if err := m.store.Set(trackingNumber, result, m.ttl); err != nil {
			m.logger.Warn("Tracking cache write failed", "tracking_number", trackingNumber, "error", err)
		}
	}

	m.memory.Store(trackingNumber, &cachedResult{
		result:    result,
		expiresAt: time.Now().Add(m.ttl),
	})
}

// Invalidate removes a cached result so the next lookup fetches fresh.
func (m *Manager) Invalidate(trackingNumber string) {
	if m.disabled {
		return
	}
	m.memory.Delete(trackingNumber)
	if m.store != nil {
		if err := m.store.Delete(trackingNumber); err != nil {
			m.logger.Warn("Tracking cache delete failed", "tracking_number", trackingNumber, "error", err)
		}
	}
}

// Close stops the cleanup goroutine.
func (m *Manager) Close() {
	m.cancel()
}

// loadFromDatabase warms the memory cache from persisted entries.
func (m *Manager) loadFromDatabase() error {
	if m.store == nil {
		return nil
	}
	entries, err := m.store.LoadAll()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		m.memory.Store(entry.TrackingNumber, &cachedResult{
			result:    entry.Result,
			expiresAt: entry.ExpiresAt,
		})
	}
	if len(entries) > 0 {
		m.logger.Info("Loaded tracking cache", "entries", len(entries))
	}
	return nil
}

// cleanupLoop periodically drops expired entries from memory and database.
func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanupExpired()
		}
	}
}

func (m *Manager) cleanupExpired() {
	m.memory.Range(func(key, value any) bool {
		if value.(*cachedResult).expired() {
			m.memory.Delete(key)
		}
		return true
	})
	if m.store != nil {
		if removed, err := m.store.DeleteExpired(); err != nil {
			m.logger.Warn("Tracking cache cleanup failed", "error", err)
		} else if removed > 0 {
			m.logger.Debug("Cleaned up expired cache entries", "removed", removed)
		}
	}
}
