// Package config holds run parameters for every component, loaded in
// layers: a validated Default(), overlaid by LoadFromEnv(), overlaid in turn
// by whatever CLI flags a given subcommand allows (§4.J).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aggregates every component's tunables.
type Config struct {
	Partition  PartitionConfig
	Batch      BatchConfig
	Query      QueryConfig
	Monitoring MonitoringConfig
}

// PartitionConfig holds defaults for the quadtree builder (component D).
type PartitionConfig struct {
	FlushThreshold int // leaves buffered before a write-out flush (default 8)
	DefaultMode    string
}

// BatchConfig holds defaults for the batch driver (component I).
type BatchConfig struct {
	Parallelism   int // worker-pool size; 0 means max(1, cores-1)
	ResultBufferN int // query-result rows buffered before append-flush
}

// QueryConfig holds defaults for the query executor (component H).
type QueryConfig struct {
	ParallelThreshold int // |candidates| at/above which fan-out is parallel
	MaxWorkers        int // worker cap; 0 means no additional cap beyond |candidates|
}

// MonitoringConfig holds the optional HTTP monitoring/admin API (component
// M). It is inert unless `spatialidx serve` is invoked.
type MonitoringConfig struct {
	Host            string
	Port            int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	Auth            AuthConfig
	RateLimit       RateLimitConfig
}

// AuthConfig configures the monitoring API's JWT bearer auth.
type AuthConfig struct {
	Enabled     bool
	JWTSecret   string
	PublicPaths []string
	AdminPaths  []string
}

// RateLimitConfig configures the monitoring API's per-client token bucket.
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerSec float64
	Burst          int
}

// Default returns the baseline configuration spec.md's design defaults
// imply: flush threshold 8, PARALLEL_THRESHOLD 4, cores-1 batch workers.
func Default() *Config {
	return &Config{
		Partition: PartitionConfig{
			FlushThreshold: 8,
			DefaultMode:    "geometries",
		},
		Batch: BatchConfig{
			Parallelism:   0,
			ResultBufferN: 250,
		},
		Query: QueryConfig{
			ParallelThreshold: 4,
			MaxWorkers:        0,
		},
		Monitoring: MonitoringConfig{
			Host:            "0.0.0.0",
			Port:            8088,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Auth: AuthConfig{
				Enabled:     false,
				PublicPaths: []string{"/v1/health"},
				AdminPaths:  []string{"/v1/reindex"},
			},
			RateLimit: RateLimitConfig{
				Enabled:        true,
				RequestsPerSec: 10,
				Burst:          20,
			},
		},
	}
}

// LoadFromEnv overlays environment variables on top of Default().
func LoadFromEnv() *Config {
	cfg := Default()

	if v := os.Getenv("SPATIALIDX_FLUSH_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Partition.FlushThreshold = n
		}
	}
	if v := os.Getenv("SPATIALIDX_PARTITION_MODE"); v != "" {
		cfg.Partition.DefaultMode = v
	}
	if v := os.Getenv("SPATIALIDX_BATCH_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.Parallelism = n
		}
	}
	if v := os.Getenv("SPATIALIDX_RESULT_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.ResultBufferN = n
		}
	}
	if v := os.Getenv("SPATIALIDX_PARALLEL_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Query.ParallelThreshold = n
		}
	}
	if v := os.Getenv("SPATIALIDX_QUERY_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Query.MaxWorkers = n
		}
	}
	if v := os.Getenv("SPATIALIDX_MONITOR_HOST"); v != "" {
		cfg.Monitoring.Host = v
	}
	if v := os.Getenv("SPATIALIDX_MONITOR_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitoring.Port = n
		}
	}
	if v := os.Getenv("SPATIALIDX_AUTH_ENABLED"); v == "true" {
		cfg.Monitoring.Auth.Enabled = true
		cfg.Monitoring.Auth.JWTSecret = os.Getenv("SPATIALIDX_JWT_SECRET")
	}
	if v := os.Getenv("SPATIALIDX_RATE_LIMIT_QPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Monitoring.RateLimit.RequestsPerSec = f
		}
	}

	return cfg
}

// Validate rejects out-of-range configuration before any component runs.
func (c *Config) Validate() error {
	if c.Partition.FlushThreshold < 1 {
		return fmt.Errorf("invalid flush threshold: %d (must be >= 1)", c.Partition.FlushThreshold)
	}
	switch c.Partition.DefaultMode {
	case "partitions", "geometries", "bytes":
	default:
		return fmt.Errorf("invalid default partition mode: %q", c.Partition.DefaultMode)
	}
	if c.Batch.ResultBufferN < 1 {
		return fmt.Errorf("invalid result buffer size: %d (must be >= 1)", c.Batch.ResultBufferN)
	}
	if c.Query.ParallelThreshold < 1 {
		return fmt.Errorf("invalid parallel threshold: %d (must be >= 1)", c.Query.ParallelThreshold)
	}
	if c.Monitoring.Port < 1 || c.Monitoring.Port > 65535 {
		return fmt.Errorf("invalid monitoring port: %d (must be 1-65535)", c.Monitoring.Port)
	}
	if c.Monitoring.Auth.Enabled && c.Monitoring.Auth.JWTSecret == "" {
		return fmt.Errorf("monitoring auth enabled but no JWT secret configured")
	}
	return nil
}

// Address returns the monitoring API's listen address (host:port).
func (c *MonitoringConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
