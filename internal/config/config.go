package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the daemon settings and every executor instance it runs.
type Config struct {
	// Client is static metadata exposed to every command.
	Client Client `yaml:"client"`
	// ListenAddress is the gRPC address lifecycle callbacks are received on.
	ListenAddress string `yaml:"listen_addr"`
	// MetricsAddress is the optional HTTP address serving Prometheus metrics.
	MetricsAddress string `yaml:"metrics_addr,omitempty"`
	// ForwardAddress is the optional gRPC address outbound events are forwarded to.
	ForwardAddress string `yaml:"forward_addr,omitempty"`
	// ScriptsDir is the working directory of spawned commands, relative to the process working directory.
	ScriptsDir string `yaml:"scripts_dir"`
	// LogLevel is the global log level.
	LogLevel string `yaml:"log_level,omitempty"`
	// CallTimeout bounds outbound gRPC calls.
	CallTimeout time.Duration `yaml:"call_timeout"`
	// EventBuffer is the capacity of the asynchronous event queue.
	EventBuffer int `yaml:"event_buffer"`
	// Executors lists the independent executor instances.
	Executors []Executor `yaml:"executors"`
}

// Client describes the installation commands are run on behalf of.
type Client struct {
	// Name is exported to commands as "client".
	Name string `yaml:"name"`
	// AlarmURLPattern is a printf pattern receiving the alarm id, exported as "clientUrl".
	AlarmURLPattern string `yaml:"alarm_url_pattern"`
}

// Executor is the immutable configuration of one executor instance.
type Executor struct {
	// PID identifies the instance in logs, metrics and outbound events.
	PID string `yaml:"pid"`
	// Command is the executable to run for every alarm action.
	Command string `yaml:"command"`
	// Timeout bounds a single command execution.
	Timeout time.Duration `yaml:"timeout"`
	// Filter is the optional boolean expression alarms must satisfy.
	Filter string `yaml:"filter,omitempty"`
	// HoldDownDelay defers triggers so quickly-cleared alarms never run the command.
	HoldDownDelay time.Duration `yaml:"hold_down_delay,omitempty"`
	// LogLevel optionally overrides the global level for this instance.
	LogLevel string `yaml:"log_level,omitempty"`
}

const (
	// DefaultConfigFilename is the default configuration file name.
	DefaultConfigFilename = "shellexec.yaml"

	// DefaultListenAddress is the default gRPC listen address.
	DefaultListenAddress = ":50061"

	// DefaultScriptsDir is the default working directory of spawned commands.
	DefaultScriptsDir = "etc/shellExecScripts"

	// DefaultCommandTimeout applies when an executor sets no timeout.
	DefaultCommandTimeout = 30 * time.Second

	// DefaultCallTimeout applies to outbound gRPC calls.
	DefaultCallTimeout = 5 * time.Second

	// DefaultEventBuffer is the default capacity of the event queue.
	DefaultEventBuffer = 256

	// DefaultFilePermissions is the permission used when saving configuration.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// ErrNoExecutors is returned when no executor instance is configured.
	ErrNoExecutors = errors.New("at least one executor must be configured")
	// ErrPIDRequired is returned when an executor has no pid.
	ErrPIDRequired = errors.New("executor pid must be provided")
	// ErrDuplicatePID is returned when two executors share a pid.
	ErrDuplicatePID = errors.New("duplicate executor pid")
	// ErrCommandRequired is returned when an executor has no command.
	ErrCommandRequired = errors.New("executor command must be provided")
	// ErrNegativeDelay is returned for a negative hold-down delay.
	ErrNegativeDelay = errors.New("hold-down delay must not be negative")
)

// Load reads configuration from path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save validates cfg and writes it to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults in place.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if cfg.MetricsAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.MetricsAddress); err != nil {
			return fmt.Errorf("invalid metrics address: %w", err)
		}
	}

	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = DefaultScriptsDir
	}

	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}

	if len(cfg.Executors) == 0 {
		return ErrNoExecutors
	}

	seen := make(map[string]struct{}, len(cfg.Executors))

	for i := range cfg.Executors {
		executor := &cfg.Executors[i]
		if err := validateExecutor(executor); err != nil {
			return fmt.Errorf("executor #%d: %w", i, err)
		}

		if _, ok := seen[executor.PID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicatePID, executor.PID)
		}

		seen[executor.PID] = struct{}{}
	}

	return nil
}

// validateExecutor checks a single executor and applies its defaults.
func validateExecutor(executor *Executor) error {
	if executor.PID == "" {
		return ErrPIDRequired
	}

	if executor.Command == "" {
		return fmt.Errorf("%s: %w", executor.PID, ErrCommandRequired)
	}

	if executor.Timeout <= 0 {
		executor.Timeout = DefaultCommandTimeout
	}

	if executor.HoldDownDelay < 0 {
		return fmt.Errorf("%s: %w", executor.PID, ErrNegativeDelay)
	}

	return nil
}

// ResolveScriptsDir returns the absolute scripts directory relative to the process working directory.
func (c *Config) ResolveScriptsDir() (string, error) {
	if filepath.IsAbs(c.ScriptsDir) {
		return c.ScriptsDir, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}

	return filepath.Join(wd, c.ScriptsDir), nil
}
