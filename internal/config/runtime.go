package config

import "time"

// RuntimeConfig holds the default per-node Configuration values (spec §3
// "Configuration", the same values as pubsub.DefaultConfiguration) plus
// grace-eviction settings. Grounded on Resin's RuntimeConfig (an
// atomic.Pointer-held struct served from the admin API); unlike the
// teacher's, this one is built once at startup and is neither served over
// HTTP nor reloaded. cmd/siouxd uses it only to seed the ConfigurationList's
// default Configuration; the GraceEvictor and audit services take their
// settings from EnvConfig, not from here.
type RuntimeConfig struct {
	AuthorizationRequired bool     `json:"authorization_required"`
	MaxUpdateSize         int      `json:"max_update_size"`
	KeepAliveTimeout      Duration `json:"keep_alive_timeout"`
	IOTimeout             Duration `json:"io_timeout"`
	MaxIdleTime           Duration `json:"max_idle_time"`

	GracePeriod    Duration `json:"grace_period"`
	GraceSweepSpec string   `json:"grace_sweep_spec"`
}

// NewDefaultRuntimeConfig returns a RuntimeConfig matching
// pubsub.DefaultConfiguration's values plus this implementation's grace
// defaults.
func NewDefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		AuthorizationRequired: true,
		MaxUpdateSize:         1 << 20,
		KeepAliveTimeout:      Duration(30 * time.Second),
		IOTimeout:             Duration(3 * time.Second),
		MaxIdleTime:           Duration(30 * time.Second),

		GracePeriod:    Duration(2 * time.Minute),
		GraceSweepSpec: "@every 30s",
	}
}
