package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig(root string) Config {
	return Config{
		OwnRoot:        root,
		ResourcesDir:   filepath.Join(root, "resources"),
		BackendURL:     DefaultBackendURL,
		DevServerURL:   DefaultDevServerURL,
		Hotkey:         DefaultHotkey,
		HealthInterval: DefaultHealthInterval,
		LogLevel:       "info",
	}
}

func TestResolveWithoutFileKeepsDefaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := Resolve(baseConfig(root), Env{}, "")
	require.NoError(t, err)

	assert.False(t, cfg.DevMode)
	assert.Empty(t, cfg.ConfigPath)
	assert.Equal(t, DefaultBackendURL, cfg.BackendURL)
	assert.Equal(t, filepath.Join(root, "resources", "app", "splash.html"), cfg.SplashDocument())
}

func TestResolveReadsImplicitFile(t *testing.T) {
	root := t.TempDir()
	content := `
interpreters = ["python3.12", "python3"]
status_port = 5701
health_interval = "5s"
hotkey = "ctrl+alt+f12"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "alice.toml"), []byte(content), 0o644))

	cfg, err := Resolve(baseConfig(root), Env{}, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"python3.12", "python3"}, cfg.Interpreters)
	assert.Equal(t, 5701, cfg.StatusPort)
	assert.Equal(t, 5*time.Second, cfg.HealthInterval)
	assert.Equal(t, "ctrl+alt+f12", cfg.Hotkey)
	assert.Equal(t, filepath.Join(root, "alice.toml"), cfg.ConfigPath)
}

func TestResolveExplicitMissingFileFails(t *testing.T) {
	root := t.TempDir()

	_, err := Resolve(baseConfig(root), Env{}, filepath.Join(root, "missing.toml"))
	require.Error(t, err)
}

func TestResolveRejectsBadDuration(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte(`health_interval = "often"`), 0o644))

	_, err := Resolve(baseConfig(root), Env{}, path)
	require.Error(t, err)
}

func TestDevModeRules(t *testing.T) {
	tests := []struct {
		name string
		env  Env
		want bool
	}{
		{"unset", Env{}, false},
		{"one", Env{Dev: "1"}, true},
		{"true", Env{Dev: "true"}, true},
		{"yes is not accepted", Env{Dev: "yes"}, false},
		{"production wins", Env{Dev: "1", AppEnv: "production"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Resolve(baseConfig(t.TempDir()), tt.env, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.DevMode)
		})
	}
}

func TestEnvOverridesFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "alice.toml"), []byte(`status_port = 5701`), 0o644))

	port := 5799
	interval := 750 * time.Millisecond
	cfg, err := Resolve(baseConfig(root), Env{
		StatusPort:     &port,
		HealthInterval: &interval,
		OpenDevtools:   "1",
		ResourcesDir:   "/opt/alice/resources",
	}, "")
	require.NoError(t, err)

	assert.Equal(t, 5799, cfg.StatusPort)
	assert.Equal(t, interval, cfg.HealthInterval)
	assert.True(t, cfg.OpenDiagnostics)
	assert.Equal(t, "/opt/alice/resources", cfg.ResourcesDir)
}

func TestMainTargetByMode(t *testing.T) {
	cfg := baseConfig("/app")
	cfg.ResourcesDir = "/res"

	assert.Equal(t, "file:///res/app/dist/index.html", cfg.MainTarget())

	cfg.DevMode = true
	assert.Equal(t, DefaultDevServerURL, cfg.MainTarget())
	assert.Equal(t, filepath.Join("/app", "splash.html"), cfg.SplashDocument())
}

func TestDefaultResourcesDir(t *testing.T) {
	assert.Equal(t, filepath.Join("/opt/alice", "resources"), defaultResourcesDir("/opt/alice", "linux"))
	assert.Equal(t, filepath.Join("/Applications/Alice.app/Contents", "Resources"),
		defaultResourcesDir("/Applications/Alice.app/Contents/MacOS", "darwin"))
}
