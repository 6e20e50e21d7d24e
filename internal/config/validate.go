package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/cron"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch cfg.Store {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			add("DATABASE_URL", "required when STORE=%s", StorePostgres)
		}
	case StoreMemory:
	default:
		add("STORE", "must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Store)
	}

	switch cfg.Transport {
	case TransportRedis:
		if cfg.RedisAddr == "" {
			add("REDIS_ADDR", "required when TRANSPORT=%s", TransportRedis)
		}
	case TransportChannel:
	default:
		add("TRANSPORT", "must be %q or %q, got %q", TransportChannel, TransportRedis, cfg.Transport)
	}

	if _, err := cron.NewParser().Parse(cfg.SchedulerSpec); err != nil {
		add("SCHEDULER_SPEC", "%v", err)
	}

	for _, f := range []struct {
		name  string
		value int
	}{
		{"SCHEDULER_PAGE_SIZE", cfg.SchedulerPageSize},
		{"ASSET_PAGE_SIZE", cfg.AssetPageSize},
		{"CONSUMER_WORKERS", cfg.ConsumerWorkers},
		{"EVENTBUS_BUFFER_SIZE", cfg.EventBusBufferSize},
		{"ENQUEUE_BATCH_SIZE", cfg.EnqueueBatchSize},
		{"DB_MAX_OPEN_CONNS", cfg.DBMaxOpenConns},
	} {
		if f.value <= 0 {
			add(f.name, "must be positive")
		}
	}
	if cfg.DBMaxIdleConns < 0 {
		add("DB_MAX_IDLE_CONNS", "must not be negative")
	}
	if cfg.CircuitBreakerThreshold < 0 {
		add("CIRCUIT_BREAKER_THRESHOLD", "must not be negative")
	}

	for _, f := range []struct {
		name  string
		value time.Duration
	}{
		{"CONSUMER_DRAIN_TIMEOUT", cfg.ConsumerDrainTimeout},
		{"DB_OP_TIMEOUT", cfg.DBOpTimeout},
		{"HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeout},
		{"ENQUEUE_INTERVAL", cfg.EnqueueInterval},
		{"RESOLVER_TIMEOUT", cfg.ResolverTimeout},
		{"LEADER_RETRY_INTERVAL", cfg.LeaderRetryInterval},
		{"LEADER_HEARTBEAT_INTERVAL", cfg.LeaderHeartbeatInterval},
		{"ANALYTICS_WINDOW", cfg.AnalyticsWindow},
		{"ANALYTICS_RETENTION", cfg.AnalyticsRetention},
	} {
		if f.value <= 0 {
			add(f.name, "must be positive")
		}
	}

	// Only the redis transport reaches the external dispatcher.
	if cfg.EnqueueEnabled && cfg.Transport != TransportRedis {
		add("ENQUEUE_ENABLED", "requires TRANSPORT=%s", TransportRedis)
	}
	if cfg.LeaderElectionEnabled && cfg.Store != StorePostgres {
		add("LEADER_ELECTION_ENABLED", "requires STORE=%s", StorePostgres)
	}

	for _, f := range []struct{ name, value string }{
		{"SPATIAL_URL", cfg.SpatialURL},
		{"ASSET_URL", cfg.AssetURL},
	} {
		if f.value == "" {
			continue
		}
		if u, err := url.Parse(f.value); err != nil || u.Scheme == "" || u.Host == "" {
			add(f.name, "must be an absolute URL, got %q", f.value)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
