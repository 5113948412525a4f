package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vkapp.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "vk-app", cfg.App.Name)
	assert.Equal(t, uint32(1280), cfg.App.Width)
	assert.Equal(t, uint32(720), cfg.App.Height)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, cfg.Renderer.ClearColor)
	assert.Equal(t, diagnosticsDefault, cfg.Renderer.EnableDiagnostics)
	assert.Equal(t, "shaders", cfg.Renderer.ShaderDir)
	assert.Equal(t, float32(0.1), cfg.Grid.Scale)
	assert.Equal(t, CameraControllerFree, cfg.Camera.Controller)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
[app]
name = "grid"
width = 800
height = 600

[renderer]
enable_diagnostics = true
clear_color = [0.1, 0.2, 0.3, 1.0]

[grid]
scale = 2.5

[log]
level = "warn"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "grid", cfg.App.Name)
	assert.Equal(t, uint32(800), cfg.App.Width)
	assert.Equal(t, uint32(600), cfg.App.Height)
	assert.True(t, cfg.Renderer.EnableDiagnostics)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1.0}, cfg.Renderer.ClearColor)
	assert.Equal(t, float32(2.5), cfg.Grid.Scale)
	assert.Equal(t, "warn", cfg.Log.Level)
	// untouched keys keep their defaults
	assert.Equal(t, "shaders", cfg.Renderer.ShaderDir)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "[app]\ncolour = 3\n"},
		{"zero width", "[app]\nwidth = 0\n"},
		{"negative grid scale", "[grid]\nscale = -1.0\n"},
		{"clear color out of range", "[renderer]\nclear_color = [2.0, 0.0, 0.0, 1.0]\n"},
		{"unknown camera controller", "[camera]\ncontroller = \"trackball\"\n"},
		{"malformed", "[app\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv(ConfigEnvVar, "")
	assert.Equal(t, DefaultConfigFile, ConfigPath())

	t.Setenv(ConfigEnvVar, "/etc/vkapp.toml")
	assert.Equal(t, "/etc/vkapp.toml", ConfigPath())
}

func TestSetLogLevel(t *testing.T) {
	require.NoError(t, SetLogLevel("info"))
	require.Error(t, SetLogLevel("chatty"))
	require.NoError(t, SetLogLevel("debug"))
}
