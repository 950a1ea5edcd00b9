package profiles

import (
	"fmt"
	"sync"

	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog/log"
)

const sightingKeyPrefix = "kavach:sighting:"

// SightingCounter counts how often an identifier has been seen across
// sessions. With a Redis pool the counts are shared between instances;
// without one they are process-local.
type SightingCounter struct {
	pool *redis.Pool

	mu    sync.Mutex
	local map[string]int64
}

// NewSightingCounter creates a counter. pool may be nil for local counting.
func NewSightingCounter(pool *redis.Pool) *SightingCounter {
	return &SightingCounter{
		pool:  pool,
		local: make(map[string]int64),
	}
}

// NewRedisPool creates a redigo pool for the given address.
func NewRedisPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:   3,
		MaxActive: 10,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
	}
}

// Increment bumps the identifier's sighting count and returns the new value.
// Redis failures fall back to the local count rather than erroring.
func (s *SightingCounter) Increment(identifier string) int64 {
	if s.pool != nil {
		conn := s.pool.Get()
		n, err := redis.Int64(conn.Do("INCR", sightingKeyPrefix+identifier))
		closeErr := conn.Close()
		if err == nil {
			if closeErr != nil {
				log.Debug().Err(closeErr).Msg("Failed to return redis connection")
			}
			return n
		}
		log.Warn().Err(err).Msg("Redis sighting counter unavailable, using local count")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[identifier]++
	return s.local[identifier]
}

// Count returns the current sighting count for an identifier.
func (s *SightingCounter) Count(identifier string) int64 {
	if s.pool != nil {
		conn := s.pool.Get()
		n, err := redis.Int64(conn.Do("GET", sightingKeyPrefix+identifier))
		_ = conn.Close()
		if err == nil {
			return n
		}
		if err != redis.ErrNil {
			log.Warn().Err(err).Msg("Redis sighting counter unavailable, using local count")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local[identifier]
}

// Close releases the Redis pool if one is configured.
func (s *SightingCounter) Close() error {
	if s.pool == nil {
		return nil
	}
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("close redis pool: %w", err)
	}
	return nil
}
