package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		DatabaseURL:             "postgres://localhost/subscriptions",
		Store:                   StorePostgres,
		Transport:               TransportChannel,
		HTTPAddr:                ":8080",
		SchedulerSpec:           "@every 1m",
		SchedulerPageSize:       100,
		AssetPageSize:           100,
		ConsumerWorkers:         4,
		ConsumerDrainTimeout:    30 * time.Second,
		EventBusBufferSize:      1000,
		DBOpTimeout:             5 * time.Second,
		DBMaxOpenConns:          25,
		DBMaxIdleConns:          5,
		HTTPShutdownTimeout:     10 * time.Second,
		EnqueueInterval:         30 * time.Second,
		EnqueueBatchSize:        100,
		ResolverTimeout:         10 * time.Second,
		CircuitBreakerThreshold: 5,
		LeaderRetryInterval:     5 * time.Second,
		LeaderHeartbeatInterval: 2 * time.Second,
		AnalyticsWindow:         time.Hour,
		AnalyticsRetention:      7 * 24 * time.Hour,
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("valid config should not return error, got: %v", err)
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/subscriptions")

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, Validate(cfg))
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing database url", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"memory store needs no database", func(c *Config) { c.DatabaseURL = ""; c.Store = StoreMemory }, ""},
		{"unknown store", func(c *Config) { c.Store = "sqlite" }, "STORE"},
		{"unknown transport", func(c *Config) { c.Transport = "kafka" }, "TRANSPORT"},
		{"redis without address", func(c *Config) { c.Transport = TransportRedis }, "REDIS_ADDR"},
		{"bad scheduler spec", func(c *Config) { c.SchedulerSpec = "every minute" }, "SCHEDULER_SPEC"},
		{"zero page size", func(c *Config) { c.AssetPageSize = 0 }, "ASSET_PAGE_SIZE"},
		{"zero workers", func(c *Config) { c.ConsumerWorkers = 0 }, "CONSUMER_WORKERS"},
		{"negative breaker threshold", func(c *Config) { c.CircuitBreakerThreshold = -1 }, "CIRCUIT_BREAKER_THRESHOLD"},
		{"disabled breaker", func(c *Config) { c.CircuitBreakerThreshold = 0 }, ""},
		{"zero drain timeout", func(c *Config) { c.ConsumerDrainTimeout = 0 }, "CONSUMER_DRAIN_TIMEOUT"},
		{"enqueue over channel", func(c *Config) { c.EnqueueEnabled = true }, "ENQUEUE_ENABLED"},
		{"enqueue over redis", func(c *Config) {
			c.EnqueueEnabled = true
			c.Transport = TransportRedis
			c.RedisAddr = "redis:6379"
		}, ""},
		{"leader election on memory", func(c *Config) { c.LeaderElectionEnabled = true; c.Store = StoreMemory }, "LEADER_ELECTION_ENABLED"},
		{"relative spatial url", func(c *Config) { c.SpatialURL = "spatial/rest" }, "SPATIAL_URL"},
		{"absolute asset url", func(c *Config) { c.AssetURL = "http://asset:8080/rest" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""
	cfg.Transport = "kafka"

	err := Validate(cfg)
	require.Error(t, err)

	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))
	assert.Len(t, errs, 2)
	assert.True(t, strings.HasPrefix(err.Error(), "2 validation errors:"))
}

func TestValidationError_Format(t *testing.T) {
	err := ValidationError{Field: "STORE", Message: "required"}
	if got := err.Error(); got != "STORE: required" {
		t.Errorf("unexpected format: %q", got)
	}
}

func TestValidationErrors_Format(t *testing.T) {
	errs := ValidationErrors{
		{Field: "A", Message: "bad"},
		{Field: "B", Message: "worse"},
	}
	want := "2 validation errors:\n  - A: bad\n  - B: worse"
	if got := errs.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := (ValidationErrors{}).Error(); got != "" {
		t.Errorf("empty errors should format as empty string, got %q", got)
	}
}
