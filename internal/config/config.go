// Package config loads the client's runtime configuration: where to
// find the kernel executable, how long to wait for it to start and
// stop, the wire codec's line-length ceiling, logging, and the
// metrics/tracing toggles. Defaults come from the environment;
// cmd/jsiihost additionally layers an optional YAML file on top.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Exporter    string  `json:"exporter" yaml:"exporter"` // otlp-http, noop
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	ServiceName string  `json:"service_name" yaml:"service_name"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level          string `json:"level" yaml:"level"` // debug, info, warn, error
	Format         string `json:"format" yaml:"format"` // text, json
	IncludeTraceID bool   `json:"include_trace_id" yaml:"include_trace_id"`
}

// Config is the client's full configuration.
type Config struct {
	// RuntimePathOverride is JSII_RUNTIME: an explicit path to the
	// kernel executable. Empty means "look up FallbackName on PATH".
	RuntimePathOverride string `json:"runtime_path" yaml:"runtime_path"`
	// FallbackName is the executable name searched for on PATH.
	FallbackName string `json:"runtime_fallback_name" yaml:"runtime_fallback_name"`
	// Debug is JSII_DEBUG: propagated into the child and mirrors its
	// stderr to the diagnostic sink.
	Debug bool `json:"debug" yaml:"debug"`
	// BootTimeout bounds how long the client waits for the kernel's
	// hello line before giving up.
	BootTimeout time.Duration `json:"boot_timeout" yaml:"boot_timeout"`
	// GracePeriod bounds how long Stop waits for the kernel to exit on
	// its own after stdin closes, before it is killed.
	GracePeriod time.Duration `json:"grace_period" yaml:"grace_period"`
	// MaxLineBytes bounds a single wire message's length.
	MaxLineBytes int64 `json:"max_line_bytes" yaml:"max_line_bytes"`
	// ExpectedVersion is the kernel runtime version this host expects
	// to see in the handshake, before build-metadata stripping.
	ExpectedVersion string `json:"expected_version" yaml:"expected_version"`

	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		FallbackName:    "jsii-runtime",
		BootTimeout:     5 * time.Second,
		GracePeriod:     2 * time.Second,
		MaxLineBytes:    64 * 1 << 20, // 64MB
		ExpectedVersion: "",
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "otlp-http",
			Endpoint:    "localhost:4318",
			ServiceName: "jsiihost",
			SampleRate:  1.0,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "jsiihost",
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			IncludeTraceID: true,
		},
	}
}

// LoadFromFile loads a YAML file and applies it on top of DefaultConfig.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to cfg. The two
// wire-contract variables, JSII_RUNTIME and JSII_DEBUG, always take
// precedence over anything loaded from a config file.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("JSII_RUNTIME"); v != "" {
		cfg.RuntimePathOverride = v
	}
	if v, ok := os.LookupEnv("JSII_DEBUG"); ok {
		cfg.Debug = debugEnabled(v)
	}
	if v := os.Getenv("JSIIHOST_BOOT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.BootTimeout = d
		}
	}
	if v := os.Getenv("JSIIHOST_GRACE_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.GracePeriod = d
		}
	}
	if v := os.Getenv("JSIIHOST_MAX_LINE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxLineBytes = n
		}
	}
	if v := os.Getenv("JSIIHOST_EXPECTED_VERSION"); v != "" {
		cfg.ExpectedVersion = v
	}

	if v := os.Getenv("JSIIHOST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("JSIIHOST_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("JSIIHOST_LOG_INCLUDE_TRACE_ID"); v != "" {
		cfg.Logging.IncludeTraceID = parseBool(v)
	}

	if v := os.Getenv("JSIIHOST_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("JSIIHOST_METRICS_NAMESPACE"); v != "" {
		cfg.Metrics.Namespace = v
	}

	if v := os.Getenv("JSIIHOST_TRACING_ENABLED"); v != "" {
		cfg.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("JSIIHOST_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
	if v := os.Getenv("JSIIHOST_TRACING_EXPORTER"); v != "" {
		cfg.Tracing.Exporter = v
	}
	if v := os.Getenv("JSIIHOST_TRACING_SERVICE_NAME"); v != "" {
		cfg.Tracing.ServiceName = v
	}
	if v := os.Getenv("JSIIHOST_TRACING_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Tracing.SampleRate = f
		}
	}
}

// FromEnv builds a Config from defaults plus environment overrides.
func FromEnv() *Config {
	cfg := DefaultConfig()
	LoadFromEnv(cfg)
	return cfg
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}

// debugEnabled mirrors kernel.DebugEnabled's JSII_DEBUG recognition
// rule without importing internal/kernel, avoiding a cycle.
func debugEnabled(raw string) bool {
	if raw == "" || raw == "0" {
		return false
	}
	return !strings.EqualFold(raw, "false")
}
