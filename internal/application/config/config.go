package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ops-agent/internal/domain/model"
	"ops-agent/pkg/backoff"
)

// SupervisorType selects the process supervisor backend.
type SupervisorType string

const (
	SupervisorTypeSystemd SupervisorType = "systemd"
	SupervisorTypeDocker  SupervisorType = "docker"
	defaultSupervisor                    = SupervisorTypeSystemd
)

// Build-time overrides, set with -ldflags "-X ops-agent/internal/application/config.basePath=...".
var (
	basePath   string
	logsPath   string
	supervisor string
)

const (
	// DefaultConfigPath is where the agent looks for its config file.
	DefaultConfigPath = "/etc/ops-agent/agent.config.json"

	// envPrefix prefixes environment overrides, e.g. OPS_BASE_PATH or OPS_HEALTH_TYPE.
	envPrefix = "OPS"

	defaultBasePath     = "/opt/patch-system"
	defaultLogsPath     = "/var/log/ops-agent"
	defaultServiceName  = "patch-system"
	defaultStartCommand = "npm start"
	defaultPort         = 3000
	defaultRef          = "main"
	defaultUnitDir      = "/etc/systemd/system"
	defaultDockerImage  = "node:20-alpine"
	defaultMaxLogLines  = 5000

	lockFile    = ".ops.lock"
	historyFile = "history.db"
	envFolder   = "env"
)

// Config holds the agent configuration.
type Config struct {
	// BasePath holds the release slots, metadata, lock and history.
	BasePath string `json:"base_path" mapstructure:"base_path" validate:"required"`
	// LogsPath holds one log file per job.
	LogsPath string `json:"logs_path" mapstructure:"logs_path" validate:"required"`
	LogLevel string `json:"log_level" mapstructure:"log_level" validate:"oneof=debug info warn warning error"`

	ServiceName  string            `json:"service_name" mapstructure:"service_name" validate:"required,service_name"`
	StartCommand string            `json:"start_command" mapstructure:"start_command" validate:"required"`
	Port         int               `json:"port" mapstructure:"port" validate:"min=1,max=65535"`
	Env          map[string]string `json:"env,omitempty" mapstructure:"env"`
	RestartSec   int               `json:"restart_sec" mapstructure:"restart_sec" validate:"gte=0"`

	// DefaultRepo is used when an operation is invoked without a repository.
	DefaultRepo string `json:"default_repo,omitempty" mapstructure:"default_repo" validate:"omitempty,git_source"`
	DefaultRef  string `json:"default_ref" mapstructure:"default_ref" validate:"required,git_ref"`

	Supervisor SupervisorType `json:"supervisor" mapstructure:"supervisor" validate:"oneof=systemd docker"`
	Systemd    SystemdConfig  `json:"systemd" mapstructure:"systemd"`
	Docker     DockerConfig   `json:"docker" mapstructure:"docker"`

	Fetch   FetchConfig   `json:"fetch" mapstructure:"fetch"`
	Health  HealthConfig  `json:"health" mapstructure:"health"`
	History HistoryConfig `json:"history" mapstructure:"history"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// MaxLogLines caps the lines returned by one job log read.
	MaxLogLines int `json:"max_log_lines" mapstructure:"max_log_lines" validate:"gte=1"`
}

type SystemdConfig struct {
	UnitDir string `json:"unit_dir" mapstructure:"unit_dir" validate:"required"`
	EnvDir  string `json:"env_dir,omitempty" mapstructure:"env_dir"`
}

type DockerConfig struct {
	Image string `json:"image" mapstructure:"image" validate:"required"`
}

// FetchConfig is the retry policy for source acquisition.
type FetchConfig struct {
	MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts" validate:"gte=1"`
	BaseDelay   time.Duration `json:"base_delay" mapstructure:"base_delay" validate:"gte=0"`
	Multiplier  int           `json:"multiplier" mapstructure:"multiplier" validate:"gte=1"`
}

// HealthConfig describes how the service is confirmed up after a restart.
type HealthConfig struct {
	Type         string        `json:"type" mapstructure:"type" validate:"oneof=tcp grpc none"`
	Host         string        `json:"host" mapstructure:"host" validate:"required"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout" validate:"gt=0"`
	PollInterval time.Duration `json:"poll_interval" mapstructure:"poll_interval" validate:"gt=0"`
}

type HistoryConfig struct {
	Path string `json:"path,omitempty" mapstructure:"path"`
}

type MetricsConfig struct {
	// Textfile, when set, receives the metrics after every job.
	Textfile string `json:"textfile,omitempty" mapstructure:"textfile"`
}

// NewConfig returns a Config with every default applied.
func NewConfig() *Config {
	cfg := &Config{}
	prepareConfig(cfg)
	return cfg
}

// prepareConfig fills in defaults for unset fields.
func prepareConfig(cfg *Config) {
	if cfg.BasePath == "" {
		cfg.BasePath = firstNonEmpty(basePath, defaultBasePath)
	}
	if cfg.LogsPath == "" {
		cfg.LogsPath = firstNonEmpty(logsPath, defaultLogsPath)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	if cfg.StartCommand == "" {
		cfg.StartCommand = defaultStartCommand
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.RestartSec == 0 {
		cfg.RestartSec = model.DefaultRestartSec
	}
	if cfg.DefaultRef == "" {
		cfg.DefaultRef = defaultRef
	}
	if cfg.Supervisor == "" {
		cfg.Supervisor = SupervisorType(firstNonEmpty(supervisor, string(defaultSupervisor)))
	}
	if cfg.Systemd.UnitDir == "" {
		cfg.Systemd.UnitDir = defaultUnitDir
	}
	if cfg.Systemd.EnvDir == "" {
		cfg.Systemd.EnvDir = filepath.Join(cfg.BasePath, envFolder)
	}
	if cfg.Docker.Image == "" {
		cfg.Docker.Image = defaultDockerImage
	}

	policy := backoff.DefaultPolicy()
	if cfg.Fetch.MaxAttempts == 0 {
		cfg.Fetch.MaxAttempts = policy.MaxAttempts
	}
	if cfg.Fetch.BaseDelay == 0 {
		cfg.Fetch.BaseDelay = policy.BaseDelay
	}
	if cfg.Fetch.Multiplier == 0 {
		cfg.Fetch.Multiplier = policy.Multiplier
	}

	if cfg.Health.Type == "" {
		cfg.Health.Type = "tcp"
	}
	if cfg.Health.Host == "" {
		cfg.Health.Host = "127.0.0.1"
	}
	if cfg.Health.Timeout == 0 {
		cfg.Health.Timeout = 30 * time.Second
	}
	if cfg.Health.PollInterval == 0 {
		cfg.Health.PollInterval = time.Second
	}

	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(cfg.BasePath, historyFile)
	}
	if cfg.MaxLogLines == 0 {
		cfg.MaxLogLines = defaultMaxLogLines
	}
}

// LoadConfig reads the JSON config file at configPath, applies OPS_*
// environment overrides and defaults, and validates the result. A missing
// file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindKeys(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	prepareConfig(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// bindKeys registers every key so AutomaticEnv applies to Unmarshal even
// when the file does not mention it.
func bindKeys(v *viper.Viper) {
	for _, key := range []string{
		"base_path", "logs_path", "log_level",
		"service_name", "start_command", "port", "restart_sec",
		"default_repo", "default_ref",
		"supervisor", "systemd.unit_dir", "systemd.env_dir", "docker.image",
		"fetch.max_attempts", "fetch.base_delay", "fetch.multiplier",
		"health.type", "health.host", "health.timeout", "health.poll_interval",
		"history.path", "metrics.textfile", "max_log_lines",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	return model.Validator().Struct(c)
}

func (c *Config) GetLockPath() string {
	return c.buildPath(lockFile)
}

func (c *Config) GetLogsPath() string {
	return c.LogsPath
}

// buildPath constructs a file path from base path and components
func (c *Config) buildPath(components ...string) string {
	parts := append([]string{c.BasePath}, components...)
	return filepath.Join(parts...)
}

// ServiceUnit returns the process definition for the managed service. PORT
// is always set from Port.
func (c *Config) ServiceUnit() model.ServiceUnit {
	env := make(map[string]string, len(c.Env)+1)
	for k, v := range c.Env {
		env[k] = v
	}
	env["PORT"] = strconv.Itoa(c.Port)
	return model.ServiceUnit{
		Name:         c.ServiceName,
		StartCommand: c.StartCommand,
		Env:          env,
		RestartSec:   c.RestartSec,
	}
}

// RetryPolicy returns the fetch retry policy.
func (c *Config) RetryPolicy() backoff.Policy {
	return backoff.Policy{
		MaxAttempts: c.Fetch.MaxAttempts,
		BaseDelay:   c.Fetch.BaseDelay,
		Multiplier:  c.Fetch.Multiplier,
	}
}

// Revision resolves repo and ref against the configured defaults.
func (c *Config) Revision(repo, ref string) (model.Revision, error) {
	if repo == "" {
		repo = c.DefaultRepo
	}
	if repo == "" {
		return model.Revision{}, fmt.Errorf("%w: repo required", model.ErrValidation)
	}
	if ref == "" {
		ref = c.DefaultRef
	}
	return model.Revision{Source: repo, Ref: ref}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
