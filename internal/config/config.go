// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	// API server configuration
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	StaticDir       string `mapstructure:"static_dir"`
	ModelConfigPath string `mapstructure:"model_config_path"`
	MaxUploadBytes  int64  `mapstructure:"max_upload_bytes"`

	// Operational endpoints
	MetricsPort    int `mapstructure:"metrics_port"`
	GRPCHealthPort int `mapstructure:"grpc_health_port"`

	// Prediction cache; empty Redis disables it
	Redis    string        `mapstructure:"redis"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// ONNX Runtime shared library; empty uses the platform default
	ONNXLibrary string `mapstructure:"onnx_library"`

	// OpenTelemetry configuration
	OTELEnabled  bool   `mapstructure:"otel_enabled"`
	OTELEndpoint string `mapstructure:"otel_endpoint"`
}

// env maps config keys to the environment variables that set them.
var env = map[string][]string{
	"host":              {"APP_HOST"},
	"port":              {"APP_PORT"},
	"static_dir":        {"STATIC_DIR"},
	"model_config_path": {"MODEL_CONFIG_PATH"},
	"max_upload_bytes":  {"MAX_UPLOAD_BYTES"},
	"metrics_port":      {"METRICS_PORT"},
	"grpc_health_port":  {"GRPC_HEALTH_PORT"},
	"redis":             {"REDIS_ADDR"},
	"cache_ttl":         {"CACHE_TTL"},
	"onnx_library":      {"ONNXRUNTIME_SHARED_LIBRARY_PATH"},
	"otel_enabled":      {"OTEL_ENABLED"},
	"otel_endpoint":     {"OTEL_EXPORTER_OTLP_ENDPOINT"},
}

// flags maps command-line flag names to config keys.
var flags = map[string]string{
	"host":         "host",
	"port":         "port",
	"static-dir":   "static_dir",
	"model-config": "model_config_path",
	"metrics-port": "metrics_port",
	"grpc-port":    "grpc_health_port",
	"redis":        "redis",
	"onnx-lib":     "onnx_library",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8000)
	v.SetDefault("static_dir", "static")
	v.SetDefault("model_config_path", "models/model_config.json")
	v.SetDefault("max_upload_bytes", 10<<20)
	v.SetDefault("metrics_port", 9100)
	v.SetDefault("grpc_health_port", 0)
	v.SetDefault("redis", "")
	v.SetDefault("cache_ttl", time.Hour)
	v.SetDefault("onnx_library", "")
	v.SetDefault("otel_enabled", false)
	v.SetDefault("otel_endpoint", "")
}

// Load loads configuration from flags, environment variables, and an optional
// config file. configFile may be empty, in which case config.yaml is looked up
// in the working directory and /etc/crop-disease-service/. fs may be nil.
// Priority (highest to lowest): flags > env vars > config file > defaults
func Load(configFile string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix("CROP_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range env {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/crop-disease-service/")

		// Read config file if present (ignore error if not found)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	if fs != nil {
		for name, key := range flags {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// An OTLP endpoint implies tracing
	if cfg.OTELEndpoint != "" {
		cfg.OTELEnabled = true
	}

	return &cfg, nil
}

// Addr is the API listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MetricsPort <= 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.MetricsPort)
	}
	if c.Port == c.MetricsPort {
		return fmt.Errorf("port and metrics_port must be different")
	}
	if c.GRPCHealthPort < 0 || c.GRPCHealthPort > 65535 {
		return fmt.Errorf("invalid grpc health port: %d", c.GRPCHealthPort)
	}
	if c.GRPCHealthPort != 0 && (c.GRPCHealthPort == c.Port || c.GRPCHealthPort == c.MetricsPort) {
		return fmt.Errorf("grpc_health_port must differ from port and metrics_port")
	}
	if c.ModelConfigPath == "" {
		return fmt.Errorf("model config path is required")
	}
	if c.StaticDir == "" {
		return fmt.Errorf("static dir is required")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid max upload bytes: %d", c.MaxUploadBytes)
	}
	return nil
}
