// Package config handles environment variable loading for the batchplane daemon.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"batchplane/internal/batch"
)

// Config holds all configuration values for the application.
type Config struct {
	// HTTP listen address for the API server, e.g. ":8080".
	ListenAddr string

	// Log level: debug, info, warn, error.
	LogLevel string

	// Scheduling
	Workers          int
	MaxCPUPercent    float64
	MaxMemoryPercent float64
	AdmissionPolicy  batch.AdmissionPolicy
	RetryPolicy      batch.RetryPolicy

	// Monitoring and alerting
	MonitoringInterval time.Duration
	AlertQueueSize     int
	AlertFailureRate   float64
	AlertResourceUsage float64

	// API rate limiting (requests per second, 0 disables)
	RateLimitRPS   float64
	RateLimitBurst int

	// OTLP collector address for traces; empty disables tracing export.
	OTELEndpoint string
}

// Load reads configuration from BATCHPLANE_* environment variables,
// falling back to the defaults, and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BATCHPLANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("workers", 5)
	v.SetDefault("max_cpu_percent", 80.0)
	v.SetDefault("max_memory_percent", 80.0)
	v.SetDefault("admission_policy", string(batch.AdmissionStrictPriority))
	v.SetDefault("retry_policy", string(batch.RetryBlocking))
	v.SetDefault("monitoring_interval", 30*time.Second)
	v.SetDefault("alert_queue_size", 100)
	v.SetDefault("alert_failure_rate", 0.1)
	v.SetDefault("alert_resource_usage", 0.9)
	v.SetDefault("rate_limit_rps", 0.0)
	v.SetDefault("rate_limit_burst", 10)
	v.SetDefault("otel_endpoint", "")

	cfg := &Config{
		ListenAddr:         v.GetString("listen_addr"),
		LogLevel:           v.GetString("log_level"),
		Workers:            v.GetInt("workers"),
		MaxCPUPercent:      v.GetFloat64("max_cpu_percent"),
		MaxMemoryPercent:   v.GetFloat64("max_memory_percent"),
		AdmissionPolicy:    batch.AdmissionPolicy(v.GetString("admission_policy")),
		RetryPolicy:        batch.RetryPolicy(v.GetString("retry_policy")),
		MonitoringInterval: v.GetDuration("monitoring_interval"),
		AlertQueueSize:     v.GetInt("alert_queue_size"),
		AlertFailureRate:   v.GetFloat64("alert_failure_rate"),
		AlertResourceUsage: v.GetFloat64("alert_resource_usage"),
		RateLimitRPS:       v.GetFloat64("rate_limit_rps"),
		RateLimitBurst:     v.GetInt("rate_limit_burst"),
		OTELEndpoint:       v.GetString("otel_endpoint"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("invalid BATCHPLANE_WORKERS: must be positive, got %d", c.Workers)
	}
	if c.MaxCPUPercent <= 0 || c.MaxCPUPercent > 100 {
		return fmt.Errorf("invalid BATCHPLANE_MAX_CPU_PERCENT: must be in (0, 100], got %v", c.MaxCPUPercent)
	}
	if c.MaxMemoryPercent <= 0 || c.MaxMemoryPercent > 100 {
		return fmt.Errorf("invalid BATCHPLANE_MAX_MEMORY_PERCENT: must be in (0, 100], got %v", c.MaxMemoryPercent)
	}
	switch c.AdmissionPolicy {
	case batch.AdmissionStrictPriority, batch.AdmissionBestFitScan:
	default:
		return fmt.Errorf("invalid BATCHPLANE_ADMISSION_POLICY: %q", c.AdmissionPolicy)
	}
	switch c.RetryPolicy {
	case batch.RetryBlocking, batch.RetryDeferred:
	default:
		return fmt.Errorf("invalid BATCHPLANE_RETRY_POLICY: %q", c.RetryPolicy)
	}
	if c.AlertFailureRate <= 0 || c.AlertFailureRate > 1 {
		return fmt.Errorf("invalid BATCHPLANE_ALERT_FAILURE_RATE: must be in (0, 1], got %v", c.AlertFailureRate)
	}
	if c.AlertResourceUsage <= 0 || c.AlertResourceUsage > 1 {
		return fmt.Errorf("invalid BATCHPLANE_ALERT_RESOURCE_USAGE: must be in (0, 1], got %v", c.AlertResourceUsage)
	}
	return nil
}
