package config

import (
	"os"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Partition.FlushThreshold != 8 {
		t.Errorf("expected flush threshold 8, got %d", cfg.Partition.FlushThreshold)
	}
	if cfg.Query.ParallelThreshold != 4 {
		t.Errorf("expected parallel threshold 4, got %d", cfg.Query.ParallelThreshold)
	}
	if cfg.Batch.ResultBufferN != 250 {
		t.Errorf("expected result buffer 250, got %d", cfg.Batch.ResultBufferN)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("SPATIALIDX_FLUSH_THRESHOLD", "16")
	os.Setenv("SPATIALIDX_PARALLEL_THRESHOLD", "8")
	os.Setenv("SPATIALIDX_AUTH_ENABLED", "true")
	os.Setenv("SPATIALIDX_JWT_SECRET", "test-secret")
	defer func() {
		os.Unsetenv("SPATIALIDX_FLUSH_THRESHOLD")
		os.Unsetenv("SPATIALIDX_PARALLEL_THRESHOLD")
		os.Unsetenv("SPATIALIDX_AUTH_ENABLED")
		os.Unsetenv("SPATIALIDX_JWT_SECRET")
	}()

	cfg := LoadFromEnv()
	if cfg.Partition.FlushThreshold != 16 {
		t.Errorf("expected flush threshold 16, got %d", cfg.Partition.FlushThreshold)
	}
	if cfg.Query.ParallelThreshold != 8 {
		t.Errorf("expected parallel threshold 8, got %d", cfg.Query.ParallelThreshold)
	}
	if !cfg.Monitoring.Auth.Enabled || cfg.Monitoring.Auth.JWTSecret != "test-secret" {
		t.Errorf("expected auth enabled with injected secret, got %+v", cfg.Monitoring.Auth)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []*Config{
		{Partition: PartitionConfig{FlushThreshold: 0, DefaultMode: "geometries"}, Query: QueryConfig{ParallelThreshold: 1}, Batch: BatchConfig{ResultBufferN: 1}, Monitoring: MonitoringConfig{Port: 80}},
		{Partition: PartitionConfig{FlushThreshold: 1, DefaultMode: "bogus"}, Query: QueryConfig{ParallelThreshold: 1}, Batch: BatchConfig{ResultBufferN: 1}, Monitoring: MonitoringConfig{Port: 80}},
		{Partition: PartitionConfig{FlushThreshold: 1, DefaultMode: "geometries"}, Query: QueryConfig{ParallelThreshold: 0}, Batch: BatchConfig{ResultBufferN: 1}, Monitoring: MonitoringConfig{Port: 80}},
		{Partition: PartitionConfig{FlushThreshold: 1, DefaultMode: "geometries"}, Query: QueryConfig{ParallelThreshold: 1}, Batch: BatchConfig{ResultBufferN: 1}, Monitoring: MonitoringConfig{Port: 0}},
	}
	for i, c := range cases {
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: expected validation error, got nil", i)
		}
	}
}

func TestAddress(t *testing.T) {
	cfg := Default()
	cfg.Monitoring.Host = "127.0.0.1"
	cfg.Monitoring.Port = 9090
	if got := cfg.Monitoring.Address(); got != "127.0.0.1:9090" {
		t.Errorf("expected address 127.0.0.1:9090, got %s", got)
	}
}
