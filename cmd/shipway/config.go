package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/shipwaylabs/shipway/internal/core/manifest"
	"github.com/shipwaylabs/shipway/internal/core/poll"
	"github.com/shipwaylabs/shipway/internal/shell/deploy"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Build    BuildConfig    `mapstructure:"build"`
	Image    ImageConfig    `mapstructure:"image"`
	Registry RegistryConfig `mapstructure:"registry"`
	Cluster  ClusterConfig  `mapstructure:"cluster"`
	App      AppConfig      `mapstructure:"app"`
	Data     DataConfig     `mapstructure:"data"`
	Poll     PollConfig     `mapstructure:"poll"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// BuildConfig holds the artifact build command configuration.
type BuildConfig struct {
	Command        []string      `mapstructure:"command"`
	Dir            string        `mapstructure:"dir"`
	ArtifactPath   string        `mapstructure:"artifact_path"`
	TestReportPath string        `mapstructure:"test_report_path"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// ImageConfig holds the image identity configuration. BuildNumber derives the
// immutable per-run tag and is typically injected by the CI environment.
type ImageConfig struct {
	Repository  string `mapstructure:"repository"`
	BuildNumber int    `mapstructure:"build_number"`
}

// RegistryConfig holds Docker daemon and registry configuration.
type RegistryConfig struct {
	Host       string `mapstructure:"host"`
	ContextDir string `mapstructure:"context_dir"`
	Dockerfile string `mapstructure:"dockerfile"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
}

// ClusterConfig holds control-plane configuration.
type ClusterConfig struct {
	Kubectl   string `mapstructure:"kubectl"`
	Context   string `mapstructure:"context"`
	Namespace string `mapstructure:"namespace"`
	// Insecure skips transport-identity verification on every control-plane
	// call. Explicit and logged; never the default.
	Insecure bool `mapstructure:"insecure"`
}

// NameValue is one environment entry. Modeled as a pair list rather than a
// map because viper lowercases map keys on load, which would corrupt env var
// names like POSTGRES_PASSWORD.
type NameValue struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

// AppConfig holds the application tier configuration.
type AppConfig struct {
	Name            string      `mapstructure:"name"`
	Replicas        int         `mapstructure:"replicas"`
	Port            int         `mapstructure:"port"`
	ServicePort     int         `mapstructure:"service_port"`
	CPURequestM     int64       `mapstructure:"cpu_request_m"`
	CPULimitM       int64       `mapstructure:"cpu_limit_m"`
	MemoryRequestMB int64       `mapstructure:"memory_request_mb"`
	MemoryLimitMB   int64       `mapstructure:"memory_limit_mb"`
	HealthPath      string      `mapstructure:"health_path"`
	Env             []NameValue `mapstructure:"env"`
}

// DataConfig holds the dependency tier configuration. Credential values are
// opaque strings and are never logged.
type DataConfig struct {
	Name        string      `mapstructure:"name"`
	Image       string      `mapstructure:"image"`
	Port        int         `mapstructure:"port"`
	StorageGB   int64       `mapstructure:"storage_gb"`
	MountPath   string      `mapstructure:"mount_path"`
	Credentials []NameValue `mapstructure:"credentials"`
}

// PollConfig holds readiness wait budgets.
type PollConfig struct {
	DependencyInterval    time.Duration `mapstructure:"dependency_interval"`
	DependencyMaxAttempts int           `mapstructure:"dependency_max_attempts"`
	RolloutInterval       time.Duration `mapstructure:"rollout_interval"`
	RolloutMaxAttempts    int           `mapstructure:"rollout_max_attempts"`
}

// ServerConfig holds HTTP server configuration for the status API.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("build.command", []string{"./gradlew", "build"})
	v.SetDefault("build.dir", ".")
	v.SetDefault("build.artifact_path", "")
	v.SetDefault("build.test_report_path", "")
	v.SetDefault("build.timeout", "15m")
	v.SetDefault("image.repository", "")
	v.SetDefault("image.build_number", 0)
	v.SetDefault("registry.host", "")
	v.SetDefault("registry.context_dir", ".")
	v.SetDefault("registry.dockerfile", "Dockerfile")
	v.SetDefault("registry.username", "")
	v.SetDefault("registry.password", "")
	v.SetDefault("cluster.kubectl", "kubectl")
	v.SetDefault("cluster.context", "")
	v.SetDefault("cluster.namespace", "")
	v.SetDefault("cluster.insecure", false)
	v.SetDefault("app.name", "") // Must be set via config file or environment
	v.SetDefault("app.replicas", 1)
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.service_port", 80)
	v.SetDefault("app.cpu_request_m", 250)
	v.SetDefault("app.cpu_limit_m", 500)
	v.SetDefault("app.memory_request_mb", 256)
	v.SetDefault("app.memory_limit_mb", 512)
	v.SetDefault("app.health_path", "/health")
	v.SetDefault("data.name", "") // Must be set via config file or environment
	v.SetDefault("data.image", "")
	v.SetDefault("data.port", 5432)
	v.SetDefault("data.storage_gb", 1)
	v.SetDefault("data.mount_path", "")
	v.SetDefault("poll.dependency_interval", "10s")
	v.SetDefault("poll.dependency_max_attempts", 30)
	v.SetDefault("poll.rollout_interval", "10s")
	v.SetDefault("poll.rollout_max_attempts", 30)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.dsn", "./data/shipway.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("SHIPWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// deployParams converts the loaded config into orchestrator params.
func deployParams(cfg *Config) deploy.Params {
	return deploy.Params{
		Repository:  cfg.Image.Repository,
		BuildNumber: cfg.Image.BuildNumber,
		App: manifest.AppParams{
			Name:     cfg.App.Name,
			Replicas: cfg.App.Replicas,
			Port:     cfg.App.Port,
			Requests: manifest.ResourceParams{
				CPUMillis:   cfg.App.CPURequestM,
				MemoryBytes: cfg.App.MemoryRequestMB << 20,
			},
			Limits: manifest.ResourceParams{
				CPUMillis:   cfg.App.CPULimitM,
				MemoryBytes: cfg.App.MemoryLimitMB << 20,
			},
			Readiness: manifest.ProbeParams{
				Path:                cfg.App.HealthPath,
				InitialDelaySeconds: 5,
				PeriodSeconds:       10,
			},
			Liveness: manifest.ProbeParams{
				Path:                cfg.App.HealthPath,
				InitialDelaySeconds: 15,
				PeriodSeconds:       20,
			},
			Env: envMap(cfg.App.Env),
		},
		AppService: manifest.ServiceParams{
			Name: cfg.App.Name,
			Ports: []manifest.PortMapping{{
				Name:       "http",
				Port:       cfg.App.ServicePort,
				TargetPort: cfg.App.Port,
			}},
		},
		Data: manifest.DataParams{
			Name:         cfg.Data.Name,
			Image:        cfg.Data.Image,
			Port:         cfg.Data.Port,
			Credentials:  envMap(cfg.Data.Credentials),
			StorageBytes: cfg.Data.StorageGB << 30,
			MountPath:    cfg.Data.MountPath,
		},
		DependencyPoll: poll.Check{
			Description: "dependency tier running",
			Interval:    cfg.Poll.DependencyInterval,
			MaxAttempts: cfg.Poll.DependencyMaxAttempts,
		},
		RolloutPoll: poll.Check{
			Description: "application rollout converged",
			Interval:    cfg.Poll.RolloutInterval,
			MaxAttempts: cfg.Poll.RolloutMaxAttempts,
		},
	}
}

// envMap converts a name/value pair list to the map form the manifest
// builders consume, preserving name case exactly as configured.
func envMap(pairs []NameValue) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		m[p.Name] = p.Value
	}
	return m
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
