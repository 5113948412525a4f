package core

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ConfigEnvVar names the environment variable holding the config file path.
const ConfigEnvVar = "VKAPP_CONFIG"

// DefaultConfigFile is used when ConfigEnvVar is not set.
const DefaultConfigFile = "vkapp.toml"

type AppConfig struct {
	Name   string `toml:"name"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	// EnableDiagnostics turns on the validation layer and the driver debug
	// callback. Read once when the graphics context is constructed.
	EnableDiagnostics bool       `toml:"enable_diagnostics"`
	ClearColor        [4]float32 `toml:"clear_color"`
	ShaderDir         string     `toml:"shader_dir"`
	WatchShaders      bool       `toml:"watch_shaders"`
}

type GridConfig struct {
	Scale float32 `toml:"scale"`
}

// Camera controllers selectable through CameraConfig.Controller.
const (
	CameraControllerFree  = "free"
	CameraControllerOrbit = "orbit"
)

type CameraConfig struct {
	Controller string `toml:"controller"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	App      AppConfig      `toml:"app"`
	Renderer RendererConfig `toml:"renderer"`
	Grid     GridConfig     `toml:"grid"`
	Camera   CameraConfig   `toml:"camera"`
	Log      LogConfig      `toml:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:   "vk-app",
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			EnableDiagnostics: diagnosticsDefault,
			ClearColor:        [4]float32{0, 0, 0, 1},
			ShaderDir:         "shaders",
			WatchShaders:      diagnosticsDefault,
		},
		Grid: GridConfig{
			Scale: 0.1,
		},
		Camera: CameraConfig{
			Controller: CameraControllerFree,
		},
		Log: LogConfig{
			Level: "debug",
		},
	}
}

// ConfigPath returns the path LoadConfig should read.
func ConfigPath() string {
	if p := os.Getenv(ConfigEnvVar); p != "" {
		return p
	}
	return DefaultConfigFile
}

// LoadConfig decodes the TOML file at path on top of the defaults. A missing
// file is not an error, unknown keys are.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			LogDebug("config file `%s` not found, using defaults", path)
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var sme *toml.StrictMissingError
		if errors.As(err, &sme) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, sme.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	LogInfo("configuration loaded from `%s`", path)
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.App.Width == 0 || c.App.Height == 0 {
		return fmt.Errorf("%w: window size must be non-zero, got %dx%d", ErrInvalidConfig, c.App.Width, c.App.Height)
	}
	if c.App.Name == "" {
		return fmt.Errorf("%w: app name is empty", ErrInvalidConfig)
	}
	if c.Grid.Scale <= 0 {
		return fmt.Errorf("%w: grid scale must be positive", ErrInvalidConfig)
	}
	switch c.Camera.Controller {
	case CameraControllerFree, CameraControllerOrbit:
	default:
		return fmt.Errorf("%w: unknown camera controller %q", ErrInvalidConfig, c.Camera.Controller)
	}
	for _, v := range c.Renderer.ClearColor {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: clear color components must be in [0,1]", ErrInvalidConfig)
		}
	}
	return nil
}
