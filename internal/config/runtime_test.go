package config

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewDefaultRuntimeConfig(t *testing.T) {
	cfg := NewDefaultRuntimeConfig()

	if !cfg.AuthorizationRequired {
		t.Errorf("AuthorizationRequired: got false, want true")
	}
	if cfg.MaxUpdateSize != 1<<20 {
		t.Errorf("MaxUpdateSize: got %d, want %d", cfg.MaxUpdateSize, 1<<20)
	}
	if cfg.KeepAliveTimeout.Std() != 30*time.Second {
		t.Errorf("KeepAliveTimeout: got %v, want 30s", cfg.KeepAliveTimeout.Std())
	}
	if cfg.GracePeriod.Std() != 2*time.Minute {
		t.Errorf("GracePeriod: got %v, want 2m", cfg.GracePeriod.Std())
	}
	if cfg.GraceSweepSpec != "@every 30s" {
		t.Errorf("GraceSweepSpec: got %q, want %q", cfg.GraceSweepSpec, "@every 30s")
	}
}

func TestRuntimeConfig_JSONRoundTrip(t *testing.T) {
	original := NewDefaultRuntimeConfig()

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var decoded RuntimeConfig
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	if decoded.MaxUpdateSize != original.MaxUpdateSize {
		t.Errorf("MaxUpdateSize: got %d, want %d", decoded.MaxUpdateSize, original.MaxUpdateSize)
	}
	if decoded.GracePeriod != original.GracePeriod {
		t.Errorf("GracePeriod: got %v, want %v", decoded.GracePeriod, original.GracePeriod)
	}
}

func TestDuration_JSON(t *testing.T) {
	d := Duration(5 * time.Minute)

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if string(data) != `"5m0s"` {
		t.Errorf("marshal: got %s, want %q", data, "5m0s")
	}

	var decoded Duration
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if time.Duration(decoded) != 5*time.Minute {
		t.Errorf("unmarshal: got %v, want 5m", time.Duration(decoded))
	}
}

func TestDuration_JSONInvalid(t *testing.T) {
	var d Duration
	err := json.Unmarshal([]byte(`"not-a-duration"`), &d)
	if err == nil {
		t.Fatal("expected error for invalid duration string")
	}

	err = json.Unmarshal([]byte(`123`), &d)
	if err == nil {
		t.Fatal("expected error for non-string duration")
	}
}

func TestRuntimeConfig_JSONFieldNames(t *testing.T) {
	cfg := NewDefaultRuntimeConfig()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal to map error: %v", err)
	}

	expectedKeys := []string{
		"authorization_required",
		"max_update_size",
		"keep_alive_timeout",
		"io_timeout",
		"max_idle_time",
		"grace_period",
		"grace_sweep_spec",
	}
	for _, key := range expectedKeys {
		if _, ok := m[key]; !ok {
			t.Errorf("missing JSON key: %q", key)
		}
	}
}
