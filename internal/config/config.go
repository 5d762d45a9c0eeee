// Package config resolves the desktop host settings from defaults, an
// optional TOML file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultBackendURL     = "http://127.0.0.1:3001"
	DefaultDevServerURL   = "http://127.0.0.1:8080/"
	DefaultHotkey         = "ctrl+shift+d"
	DefaultHealthInterval = 2 * time.Second
	configFileName        = "alice.toml"
)

// Config holds the resolved host settings.
type Config struct {
	DevMode         bool
	OpenDiagnostics bool

	OwnRoot      string
	ResourcesDir string
	ConfigPath   string

	Interpreters   []string
	BackendURL     string
	DevServerURL   string
	StatusPort     int
	Hotkey         string
	HealthInterval time.Duration

	LogLevel string
}

// Env mirrors the environment variables understood by the host.
type Env struct {
	AppEnv         string         `envconfig:"ALICE_ENV"`
	Dev            string         `envconfig:"ALICE_DEV"`
	OpenDevtools   string         `envconfig:"OPEN_DEVTOOLS"`
	Root           string         `envconfig:"ALICE_ROOT"`
	ResourcesDir   string         `envconfig:"ALICE_RESOURCES_DIR"`
	ConfigPath     string         `envconfig:"ALICE_CONFIG"`
	LogLevel       string         `envconfig:"ALICE_LOG_LEVEL"`
	StatusPort     *int           `envconfig:"ALICE_STATUS_PORT"`
	Interpreters   []string       `envconfig:"ALICE_INTERPRETERS"`
	BackendURL     string         `envconfig:"ALICE_BACKEND_URL"`
	HealthInterval *time.Duration `envconfig:"ALICE_HEALTH_INTERVAL"`
}

type fileConfig struct {
	ResourcesDir   string   `toml:"resources_dir"`
	Interpreters   []string `toml:"interpreters"`
	BackendURL     string   `toml:"backend_url"`
	DevServerURL   string   `toml:"dev_server_url"`
	StatusPort     int      `toml:"status_port"`
	Hotkey         string   `toml:"hotkey"`
	HealthInterval string   `toml:"health_interval"`
	LogLevel       string   `toml:"log_level"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	root := executableDir()
	return Config{
		OwnRoot:        root,
		ResourcesDir:   defaultResourcesDir(root, runtime.GOOS),
		BackendURL:     DefaultBackendURL,
		DevServerURL:   DefaultDevServerURL,
		Hotkey:         DefaultHotkey,
		HealthInterval: DefaultHealthInterval,
		LogLevel:       "info",
	}
}

// Load resolves the configuration. An explicit path that does not exist is
// an error; the implicit alice.toml next to the executable is optional.
func Load(path string) (Config, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}
	return Resolve(Default(), env, path)
}

// Resolve layers the config file and env over base.
func Resolve(base Config, env Env, path string) (Config, error) {
	cfg := base

	if env.Root != "" {
		cfg.OwnRoot = env.Root
	}

	explicit := strings.TrimSpace(path)
	if explicit == "" {
		explicit = strings.TrimSpace(env.ConfigPath)
	}
	filePath := explicit
	if filePath == "" && cfg.OwnRoot != "" {
		filePath = filepath.Join(cfg.OwnRoot, configFileName)
	}

	if filePath != "" {
		if err := cfg.applyFile(filePath, explicit != ""); err != nil {
			return Config{}, err
		}
	}

	cfg.applyEnv(env)
	return cfg, nil
}

func (c *Config) applyFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	c.ConfigPath = path
	if v := strings.TrimSpace(raw.ResourcesDir); v != "" {
		c.ResourcesDir = v
	}
	if len(raw.Interpreters) > 0 {
		c.Interpreters = raw.Interpreters
	}
	if v := strings.TrimSpace(raw.BackendURL); v != "" {
		c.BackendURL = v
	}
	if v := strings.TrimSpace(raw.DevServerURL); v != "" {
		c.DevServerURL = v
	}
	if raw.StatusPort > 0 {
		c.StatusPort = raw.StatusPort
	}
	if v := strings.TrimSpace(raw.Hotkey); v != "" {
		c.Hotkey = v
	}
	if v := strings.TrimSpace(raw.HealthInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse config: health_interval: %w", err)
		}
		c.HealthInterval = d
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

func (c *Config) applyEnv(env Env) {
	if env.AppEnv != "production" && truthy(env.Dev) {
		c.DevMode = true
	}
	if env.OpenDevtools == "1" {
		c.OpenDiagnostics = true
	}
	if env.ResourcesDir != "" {
		c.ResourcesDir = env.ResourcesDir
	}
	if env.LogLevel != "" {
		c.LogLevel = env.LogLevel
	}
	if env.StatusPort != nil {
		c.StatusPort = *env.StatusPort
	}
	if len(env.Interpreters) > 0 {
		c.Interpreters = env.Interpreters
	}
	if env.BackendURL != "" {
		c.BackendURL = env.BackendURL
	}
	if env.HealthInterval != nil && *env.HealthInterval > 0 {
		c.HealthInterval = *env.HealthInterval
	}
}

// SplashDocument returns the static document shown in the splash surface.
func (c Config) SplashDocument() string {
	if c.DevMode {
		return filepath.Join(c.OwnRoot, "splash.html")
	}
	return filepath.Join(c.ResourcesDir, "app", "splash.html")
}

// MainTarget returns the content loaded into the main surface.
func (c Config) MainTarget() string {
	if c.DevMode {
		return c.DevServerURL
	}
	return "file://" + filepath.ToSlash(filepath.Join(c.ResourcesDir, "app", "dist", "index.html"))
}

func truthy(v string) bool {
	return v == "1" || v == "true"
}

func executableDir() string {
	exePath, err := os.Executable()
	if err != nil {
		wd, _ := os.Getwd()
		return wd
	}
	if resolved, err := filepath.EvalSymlinks(exePath); err == nil {
		exePath = resolved
	}
	return filepath.Dir(exePath)
}

func defaultResourcesDir(exeDir, goos string) string {
	if goos == "darwin" && filepath.Base(exeDir) == "MacOS" {
		return filepath.Join(filepath.Dir(exeDir), "Resources")
	}
	return filepath.Join(exeDir, "resources")
}
