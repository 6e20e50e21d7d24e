package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Transport backends.
const (
	TransportChannel = "channel"
	TransportRedis   = "redis"
)

// Config holds all configuration of the subtrigger service, read from the
// environment. Each field is named by its envconfig tag.
type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`
	Store       string `envconfig:"STORE" default:"postgres"`
	RedisAddr   string `envconfig:"REDIS_ADDR"`
	Transport   string `envconfig:"TRANSPORT" default:"channel"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	SchedulerSpec     string `envconfig:"SCHEDULER_SPEC" default:"@every 1m"`
	SchedulerPageSize int    `envconfig:"SCHEDULER_PAGE_SIZE" default:"100"`
	AssetPageSize     int    `envconfig:"ASSET_PAGE_SIZE" default:"100"`

	ConsumerWorkers      int           `envconfig:"CONSUMER_WORKERS" default:"4"`
	ConsumerDrainTimeout time.Duration `envconfig:"CONSUMER_DRAIN_TIMEOUT" default:"30s"`
	EventBusBufferSize   int           `envconfig:"EVENTBUS_BUFFER_SIZE" default:"1000"`

	DBOpTimeout       time.Duration `envconfig:"DB_OP_TIMEOUT" default:"5s"`
	DBMaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	DBMaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	DBConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	DBConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"5m"`

	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`

	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricsPath    string `envconfig:"METRICS_PATH" default:"/metrics"`
	// MetricsPort serves metrics on a separate listener; empty shares HTTP_ADDR.
	MetricsPort string `envconfig:"METRICS_PORT"`

	EnqueueEnabled   bool          `envconfig:"ENQUEUE_ENABLED" default:"false"`
	EnqueueInterval  time.Duration `envconfig:"ENQUEUE_INTERVAL" default:"30s"`
	EnqueueBatchSize int           `envconfig:"ENQUEUE_BATCH_SIZE" default:"100"`

	SpatialURL      string        `envconfig:"SPATIAL_URL"`
	AssetURL        string        `envconfig:"ASSET_URL"`
	ResolverTimeout time.Duration `envconfig:"RESOLVER_TIMEOUT" default:"10s"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold int           `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`
	CircuitBreakerCooldown  time.Duration `envconfig:"CIRCUIT_BREAKER_COOLDOWN" default:"2m"`

	LeaderElectionEnabled bool `envconfig:"LEADER_ELECTION_ENABLED" default:"false"`
	// LeaderLockKey: all instances sharing the same database must use the same key.
	LeaderLockKey int64 `envconfig:"LEADER_LOCK_KEY" default:"815204"`
	// LeaderRetryInterval bounds the failover gap.
	LeaderRetryInterval time.Duration `envconfig:"LEADER_RETRY_INTERVAL" default:"5s"`
	// LeaderHeartbeatInterval pings the lock connection to detect its death.
	// It does not renew the advisory lock.
	LeaderHeartbeatInterval time.Duration `envconfig:"LEADER_HEARTBEAT_INTERVAL" default:"2s"`

	AnalyticsWindow    time.Duration `envconfig:"ANALYTICS_WINDOW" default:"1h"`
	AnalyticsRetention time.Duration `envconfig:"ANALYTICS_RETENTION" default:"168h"`
}

// Load reads the configuration from the environment. Defaults apply to unset
// variables; values that do not parse are an error. Use Validate for the
// cross-field rules.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// MaskedJSON returns the configuration keyed by environment variable, with
// secrets masked and durations in Go duration syntax.
func (c Config) MaskedJSON() ([]byte, error) {
	out := make(map[string]any)
	v := reflect.ValueOf(c)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Tag.Get("envconfig")
		if name == "" {
			continue
		}
		switch f := v.Field(i).Interface().(type) {
		case time.Duration:
			out[name] = f.String()
		default:
			out[name] = f
		}
	}
	out["DATABASE_URL"] = maskSecret(c.DatabaseURL)
	out["REDIS_ADDR"] = maskUserInfo(c.RedisAddr)
	return json.MarshalIndent(out, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(s, scheme) {
			return scheme + "***"
		}
	}
	return "***"
}

// maskUserInfo hides credentials in "user:pass@host:port" style addresses.
func maskUserInfo(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		return "***@" + addr[i+1:]
	}
	return addr
}
