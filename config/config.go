// Package config builds kernel options from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/centraunit/ioc"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the runtime configuration of a kernel tree.
type Config struct {
	KernelName string
	LogLevel   string // debug | info | warn | error
	LogFormat  string // console | json
	Metrics    bool
	Manifest   string
}

// Load reads .env (if present) and populates a Config from environment
// variables.
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env is optional
	_ = godotenv.Load(files...)

	return &Config{
		KernelName: env("IOC_KERNEL_NAME", "root"),
		LogLevel:   env("IOC_LOG_LEVEL", "info"),
		LogFormat:  env("IOC_LOG_FORMAT", "console"),
		Metrics:    envBool("IOC_METRICS", false),
		Manifest:   env("IOC_MANIFEST", "components.yaml"),
	}
}

// Level returns the zap level for LogLevel.
func (c *Config) Level() (zapcore.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", c.LogLevel)
}

// Logger builds the zap logger described by the configuration.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := c.Level()
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	switch strings.ToLower(c.LogFormat) {
	case "json":
		zc = zap.NewProductionConfig()
	case "", "console":
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// KernelOptions returns the options for the root kernel: its name, the
// logger and, when enabled, metrics registered on reg.
func (c *Config) KernelOptions(reg prometheus.Registerer) ([]ioc.Option, error) {
	logger, err := c.Logger()
	if err != nil {
		return nil, err
	}
	opts := []ioc.Option{ioc.WithName(c.KernelName), ioc.WithLogger(logger)}
	if c.Metrics {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		m, err := ioc.NewMetrics(reg)
		if err != nil {
			return nil, fmt.Errorf("registering kernel metrics: %w", err)
		}
		opts = append(opts, ioc.WithMetrics(m))
	}
	return opts, nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
