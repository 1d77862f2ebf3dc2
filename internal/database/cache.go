package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"shipment-tracking/internal/carriers"
)

// TrackingCacheEntry represents a cached tracking result row
type TrackingCacheEntry struct {
	TrackingNumber string                  `json:"tracking_number"`
	Result         carriers.TrackingResult `json:"result"`
	CachedAt       time.Time               `json:"cached_at"`
	ExpiresAt      time.Time               `json:"expires_at"`
}

// TrackingCacheStore handles database operations for the tracking cache
type TrackingCacheStore struct {
	db *sql.DB
}

// NewTrackingCacheStore creates a new tracking cache store
func NewTrackingCacheStore(db *sql.DB) *TrackingCacheStore {
	return &TrackingCacheStore{db: db}
}

// Get retrieves a cached result, nil on a miss or an expired entry
func (s *TrackingCacheStore) Get(trackingNumber string) (*carriers.TrackingResult, error) {
	query := `SELECT response_data, expires_at FROM tracking_cache WHERE tracking_number = ?`

	var responseData string
	var expiresAt time.Time

	err := s.db.QueryRow(query, trackingNumber).Scan(&responseData, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get cached result: %w", err)
	}

	if time.Now().After(expiresAt) {
		s.Delete(trackingNumber)
		return nil, nil
	}

	var result carriers.TrackingResult
	if err := json.Unmarshal([]byte(responseData), &result); err != nil {
		return nil, fmt.Errorf("failed to deserialize cached result: %w", err)
	}

	return &result, nil
}

// Set stores a result with the specified TTL
func (s *TrackingCacheStore) Set(trackingNumber string, result carriers.TrackingResult, ttl time.Duration) error {
	responseData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	query := `INSERT OR REPLACE INTO tracking_cache (tracking_number, response_data, cached_at, expires_at)
			  VALUES (?, ?, CURRENT_TIMESTAMP, ?)`

	_, err = s.db.Exec(query, trackingNumber, string(responseData), time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}

	return nil
}

// Delete removes a cached entry
func (s *TrackingCacheStore) Delete(trackingNumber string) error {
	if _, err := s.db.Exec(`DELETE FROM tracking_cache WHERE tracking_number = ?`, trackingNumber); err != nil {
		return fmt.Errorf("failed to delete cached entry: %w", err)
	}
	return nil
}

// DeleteExpired removes all expired cache entries and reports how many
func (s *TrackingCacheStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM tracking_cache WHERE expires_at <= ?`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// LoadAll loads all non-expired cache entries, oldest first
func (s *TrackingCacheStore) LoadAll() ([]TrackingCacheEntry, error) {
	query := `SELECT tracking_number, response_data, cached_at, expires_at
			  FROM tracking_cache WHERE expires_at > ? ORDER BY cached_at`

	rows, err := s.db.Query(query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to load cache entries: %w", err)
	}
	defer rows.Close()

	var entries []TrackingCacheEntry
	for rows.Next() {
		var entry TrackingCacheEntry
		var responseData string
		if err := rows.Scan(&entry.TrackingNumber, &responseData, &entry.CachedAt, &entry.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		if err := json.Unmarshal([]byte(responseData), &entry.Result); err != nil {
			continue // Skip corrupt rows
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
