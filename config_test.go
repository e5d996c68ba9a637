package main

import (
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/google/go-cmp/cmp"
)

func parseEnv(vars map[string]string) (Config, error) {
	return parseConfig(env.Options{Environment: vars})
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := parseEnv(map[string]string{})
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}

	want := Config{
		Port:          "7070",
		HTTPPort:      "8080",
		StorageKey:    "@GoMarket:product",
		PersistMode:   "mutation",
		LogLevel:      "info",
		TraceExporter: "otlp",
		OTLPEndpoint:  "localhost:4317",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseConfig_FromEnv(t *testing.T) {
	cfg, err := parseEnv(map[string]string{
		"REDIS_ADDR":        "redis-cart",
		"CART_PERSIST_MODE": "snapshot",
		"METRICS_ENABLED":   "true",
		"TRACE_EXPORTER":    "none",
	})
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.RedisAddr != "redis-cart" || cfg.PersistMode != "snapshot" || !cfg.MetricsEnabled || cfg.TraceExporter != "none" {
		t.Errorf("config = %+v", cfg)
	}
}

func TestParseConfig_IgnoresProcessEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("REDIS_ADDR", "elsewhere")

	cfg, err := parseEnv(map[string]string{})
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.Port != "7070" || cfg.RedisAddr != "" {
		t.Errorf("config picked up process env: %+v", cfg)
	}
}

func TestLoadConfig_ReadsProcessEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "8181")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("TRACE_EXPORTER", "otlp")
	t.Setenv("CART_PERSIST_MODE", "mutation")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.HTTPPort != "8181" {
		t.Errorf("HTTPPort = %q, want %q", cfg.HTTPPort, "8181")
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"CART_PERSIST_MODE": "full",
		"LOG_LEVEL":         "loud",
		"TRACE_EXPORTER":    "jaeger",
		"METRICS_ENABLED":   "maybe",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			if _, err := parseEnv(map[string]string{key: value}); err == nil {
				t.Errorf("parseConfig accepted %s=%q", key, value)
			}
		})
	}
}
