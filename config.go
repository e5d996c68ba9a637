// config.go

package main

import (
	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/norun9/gomarket-cart/cartstore"
)

// Config is read from the environment.
type Config struct {
	Port     string `env:"PORT" envDefault:"7070"`
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	// RedisAddr selects the Redis backend; empty keeps the cart in process memory.
	RedisAddr   string `env:"REDIS_ADDR"`
	StorageKey  string `env:"CART_STORAGE_KEY" envDefault:"@GoMarket:product"`
	PersistMode string `env:"CART_PERSIST_MODE" envDefault:"mutation"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	TraceExporter  string `env:"TRACE_EXPORTER" envDefault:"otlp"`
	OTLPEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"false"`
}

// loadConfig parses and validates the process environment.
func loadConfig() (Config, error) {
	return parseConfig(env.Options{})
}

// parseConfig reads opts.Environment when set, the process environment otherwise.
func parseConfig(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, errors.Wrap(err, "parse env")
	}
	if _, err := cartstore.ParsePersistMode(cfg.PersistMode); err != nil {
		return Config{}, err
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, errors.Wrap(err, "LOG_LEVEL")
	}
	switch cfg.TraceExporter {
	case "otlp", "stdout", "none":
	default:
		return Config{}, errors.Errorf("unknown TRACE_EXPORTER %q", cfg.TraceExporter)
	}
	return cfg, nil
}
