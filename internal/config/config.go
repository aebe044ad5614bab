package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/recorder-launcher/internal/logger"
)

// Config holds the settings shared by the provisioning and launcher binaries.
type Config struct {
	// ResourcesDir is the base directory holding dependencies/ and executable/.
	ResourcesDir string `yaml:"resources_dir"`
	// AppDataDir is the per-user directory for the rendered properties and saved record.
	AppDataDir string `yaml:"app_data_dir"`
	// BridgeAddress is the loopback gRPC address the UI bridge listens on.
	BridgeAddress string `yaml:"bridge_addr"`
	// BackendURL is where the UI navigates once the backend is ready.
	BackendURL string `yaml:"backend_url"`
	// ReadinessSentinel is the stdout substring that marks the backend as initialized.
	ReadinessSentinel string `yaml:"readiness_sentinel"`
	// ReadinessTimeout bounds the readiness wait. Zero waits forever.
	ReadinessTimeout time.Duration `yaml:"readiness_timeout"`
	// StopTimeout is the grace period between SIGTERM and SIGKILL.
	StopTimeout time.Duration `yaml:"stop_timeout"`
	// Timeout is the duration for bridge calls.
	Timeout time.Duration `yaml:"timeout"`
	// RuntimeVariant selects JRE or JDK packaging. Empty picks the platform default.
	RuntimeVariant string `yaml:"runtime_variant"`
	// MetricsAddress enables the Prometheus endpoint when set.
	MetricsAddress string `yaml:"metrics_addr"`
	// LogLevel is the minimum zap level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// LogFile also writes launcher logs as JSON lines. Relative paths live under AppDataDir.
	LogFile string `yaml:"log_file"`
}

const (
	// DefaultConfigFilename is the default filename for launcher settings.
	DefaultConfigFilename = "recorder-launcher-settings.yaml"

	// DefaultAppDataFolder is created under the user configuration directory.
	DefaultAppDataFolder = "class-recorder-data"

	// DefaultBridgeAddress is the loopback address of the bridge server.
	DefaultBridgeAddress = "127.0.0.1:37133"

	// DefaultBackendURL is the address served by the backend once started.
	DefaultBackendURL = "http://localhost:37132"

	// DefaultReadinessSentinel is printed by the backend when it has finished booting.
	DefaultReadinessSentinel = "Started ClassrecorderApplication"

	// DefaultTimeout is the default duration for bridge calls.
	DefaultTimeout = 5 * time.Second

	// DefaultStopTimeout is how long the backend gets to exit after SIGTERM.
	DefaultStopTimeout = 10 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// DefaultDirPermissions is used for directories the launcher creates.
	DefaultDirPermissions = 0o755
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeDuration is returned for negative timeouts.
	errNegativeDuration = errors.New("duration must not be negative")
	// errUnknownVariant is returned for runtime variants other than jre or jdk.
	errUnknownVariant = errors.New("unknown runtime variant")
	// errUnknownLogLevel is returned when log_level cannot be parsed.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Default returns settings with every default applied.
func Default() (*Config, error) {
	cfg := new(Config)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads configuration from the provided path and validates essential fields.
// A missing file at the default location yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultConfigFilename {
			return Default()
		}

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

// Save writes Settings to the provided path.
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

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for formatting errors and fills in defaults.
//
//nolint:cyclop // Each field is validated in turn; splitting would only scatter it.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ResourcesDir == "" {
		settings.ResourcesDir = "."
	}

	if settings.AppDataDir == "" {
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("resolve application data directory: %w", err)
		}

		settings.AppDataDir = filepath.Join(userConfigDir, DefaultAppDataFolder)
	}

	if settings.BridgeAddress == "" {
		settings.BridgeAddress = DefaultBridgeAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.BridgeAddress); err != nil {
		return fmt.Errorf("invalid bridge address: %w", err)
	}

	if settings.BackendURL == "" {
		settings.BackendURL = DefaultBackendURL
	}

	if _, err := url.ParseRequestURI(settings.BackendURL); err != nil {
		return fmt.Errorf("invalid backend URL: %w", err)
	}

	if settings.ReadinessSentinel == "" {
		settings.ReadinessSentinel = DefaultReadinessSentinel
	}

	if settings.ReadinessTimeout < 0 || settings.StopTimeout < 0 || settings.Timeout < 0 {
		return errNegativeDuration
	}

	if settings.StopTimeout == 0 {
		settings.StopTimeout = DefaultStopTimeout
	}

	if settings.Timeout == 0 {
		settings.Timeout = DefaultTimeout
	}

	settings.RuntimeVariant = strings.ToLower(strings.TrimSpace(settings.RuntimeVariant))
	switch settings.RuntimeVariant {
	case "", "jre", "jdk":
	default:
		return fmt.Errorf("%w: %s", errUnknownVariant, settings.RuntimeVariant)
	}

	if settings.MetricsAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.MetricsAddress); err != nil {
			return fmt.Errorf("invalid metrics address: %w", err)
		}
	}

	if settings.LogLevel != "" {
		if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
			return fmt.Errorf("%w: %s", errUnknownLogLevel, settings.LogLevel)
		}
	}

	return nil
}

// ApplyLogLevel sets the global logger level from override, falling back to log_level.
// Nothing changes when both are empty.
func ApplyLogLevel(settings *Config, override string) error {
	raw := override
	if raw == "" && settings != nil {
		raw = settings.LogLevel
	}

	if raw == "" {
		return nil
	}

	level, ok := logger.ParseLogLevel(raw)
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownLogLevel, raw)
	}

	logger.SetLevel(level)

	return nil
}
