// Package config handles environment-based configuration loading and
// runtime config models, grounded on Resin's internal/config: required
// variables with typed defaults, validated once at startup into an
// immutable EnvConfig rather than read ad hoc.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds every environment-variable-driven setting for siouxd
// (spec §3/§4.E/§6; read once at startup — see RuntimeConfig for the
// default per-node Configuration values).
type EnvConfig struct {
	// Directories
	StateDir string // audit.db lives here

	// Network
	ListenAddress string
	PubSubPort    int // primary HTTP listener: spec §4.E/§4.F
	AdminPort     int // internal/adminapi

	// Connection (spec §3 Configuration defaults, applied per-connection)
	MaxRequestBytes  int
	KeepAliveTimeout time.Duration
	IOTimeout        time.Duration

	// Node store
	MaxHistoryBytes  int // internal/pubsub.NewRoot bounded-history budget
	TaskQueueSize    int
	TaskQueueWorkers int

	// Grace eviction (spec §3: "destroyed... after an implementation
	// defined grace" once a node has no subscribers)
	GracePeriod    time.Duration
	GraceSweepSpec string // cron expression, e.g. "@every 30s"

	// Audit (internal/audit, an observability side-channel only)
	AuditQueueSize     int
	AuditFlushBatch    int
	AuditFlushInterval time.Duration

	// Auth
	AdminToken string
}

// LoadEnvConfig reads environment variables and returns a validated
// EnvConfig. Returns an error naming every invalid/missing variable at
// once rather than failing on the first one, mirroring the teacher's
// accumulate-then-report validation style.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	cfg.StateDir = envStr("SIOUX_STATE_DIR", "/var/lib/sioux")
	cfg.ListenAddress = strings.TrimSpace(envStr("SIOUX_LISTEN_ADDRESS", "0.0.0.0"))
	cfg.PubSubPort = envInt("SIOUX_PORT", 7890, &errs)
	cfg.AdminPort = envInt("SIOUX_ADMIN_PORT", 7891, &errs)

	cfg.MaxRequestBytes = envInt("SIOUX_MAX_REQUEST_BYTES", 64*1024, &errs)
	cfg.KeepAliveTimeout = envDuration("SIOUX_KEEP_ALIVE_TIMEOUT", 30*time.Second, &errs)
	cfg.IOTimeout = envDuration("SIOUX_IO_TIMEOUT", 3*time.Second, &errs)

	cfg.MaxHistoryBytes = envInt("SIOUX_MAX_HISTORY_BYTES", 4<<20, &errs)
	cfg.TaskQueueSize = envInt("SIOUX_TASK_QUEUE_SIZE", 4096, &errs)
	cfg.TaskQueueWorkers = envInt("SIOUX_TASK_QUEUE_WORKERS", 1, &errs)

	cfg.GracePeriod = envDuration("SIOUX_GRACE_PERIOD", 2*time.Minute, &errs)
	cfg.GraceSweepSpec = envStr("SIOUX_GRACE_SWEEP_SPEC", "@every 30s")

	cfg.AuditQueueSize = envInt("SIOUX_AUDIT_QUEUE_SIZE", 4096, &errs)
	cfg.AuditFlushBatch = envInt("SIOUX_AUDIT_FLUSH_BATCH", 512, &errs)
	cfg.AuditFlushInterval = envDuration("SIOUX_AUDIT_FLUSH_INTERVAL", time.Minute, &errs)

	adminToken, hasAdminToken := os.LookupEnv("SIOUX_ADMIN_TOKEN")
	cfg.AdminToken = adminToken

	if !hasAdminToken {
		errs = append(errs, "SIOUX_ADMIN_TOKEN must be defined (can be empty to disable admin auth)")
	} else if IsWeakToken(cfg.AdminToken) {
		errs = append(errs, "SIOUX_ADMIN_TOKEN is too weak; pick a stronger token or leave it empty to disable admin auth")
	}
	if cfg.ListenAddress == "" {
		errs = append(errs, "SIOUX_LISTEN_ADDRESS must not be empty")
	}

	validatePort("SIOUX_PORT", cfg.PubSubPort, &errs)
	validatePort("SIOUX_ADMIN_PORT", cfg.AdminPort, &errs)
	if cfg.PubSubPort == cfg.AdminPort {
		errs = append(errs, "SIOUX_PORT and SIOUX_ADMIN_PORT must differ")
	}
	validatePositive("SIOUX_MAX_REQUEST_BYTES", cfg.MaxRequestBytes, &errs)
	if cfg.KeepAliveTimeout <= 0 {
		errs = append(errs, "SIOUX_KEEP_ALIVE_TIMEOUT must be positive")
	}
	if cfg.IOTimeout <= 0 {
		errs = append(errs, "SIOUX_IO_TIMEOUT must be positive")
	}
	validatePositive("SIOUX_MAX_HISTORY_BYTES", cfg.MaxHistoryBytes, &errs)
	validatePositive("SIOUX_TASK_QUEUE_SIZE", cfg.TaskQueueSize, &errs)
	validatePositive("SIOUX_TASK_QUEUE_WORKERS", cfg.TaskQueueWorkers, &errs)
	if cfg.GracePeriod <= 0 {
		errs = append(errs, "SIOUX_GRACE_PERIOD must be positive")
	}
	if _, err := cron.ParseStandard(cfg.GraceSweepSpec); err != nil {
		errs = append(errs, fmt.Sprintf("SIOUX_GRACE_SWEEP_SPEC: invalid cron expression %q: %v", cfg.GraceSweepSpec, err))
	}
	validatePositive("SIOUX_AUDIT_QUEUE_SIZE", cfg.AuditQueueSize, &errs)
	validatePositive("SIOUX_AUDIT_FLUSH_BATCH", cfg.AuditFlushBatch, &errs)
	if cfg.AuditFlushInterval <= 0 {
		errs = append(errs, "SIOUX_AUDIT_FLUSH_INTERVAL must be positive")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}
