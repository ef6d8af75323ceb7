package backend

import (
	"context"
	"time"

	"cashflow/internal/services"
	"cashflow/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult is everything the binaries need from the environment: a
// store, the report caches and an optional change publisher.
type BackendResult struct {
	Store  storage.Store
	Caches *services.ReportCaches
	// Publisher is nil when AMQP is not configured.
	Publisher services.Publisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type         BackendType
	SQLiteDBPath string
	DatabaseURL  string
	StoreTimeout time.Duration

	Cache     CacheType
	RedisURL  string
	CacheTTL  time.Duration
	CacheSize int

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// CacheType selects where report results are memoized.
type CacheType string

const (
	MemoryCache CacheType = "memory"
	RedisCache  CacheType = "redis"
	NoCache     CacheType = "none"
)

func (ct CacheType) IsValid() bool {
	switch ct {
	case MemoryCache, RedisCache, NoCache:
		return true
	default:
		return false
	}
}
