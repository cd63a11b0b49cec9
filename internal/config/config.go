// Package config loads smart-ocr settings from a YAML file, SMART_OCR_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/ironsheep/smart-ocr/internal/camera"
	"github.com/ironsheep/smart-ocr/internal/permission"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SMART_OCR"

// Camera source kinds.
const (
	SourceCommand = "command"
	SourceDir     = "dir"
)

type Config struct {
	Camera      CameraConfig      `mapstructure:"camera"`
	OCR         OCRConfig         `mapstructure:"ocr"`
	TTS         TTSConfig         `mapstructure:"tts"`
	STT         STTConfig         `mapstructure:"stt"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	Log         LogConfig         `mapstructure:"log"`
	Overlay     OverlayConfig     `mapstructure:"overlay"`
}

type CameraConfig struct {
	Source   string        `mapstructure:"source"`
	Command  []string      `mapstructure:"command"`
	Dir      string        `mapstructure:"dir"`
	Interval time.Duration `mapstructure:"interval"`
	Loop     bool          `mapstructure:"loop"`
	Rotation int           `mapstructure:"rotation"`
}

type OCRConfig struct {
	Languages         []string `mapstructure:"languages"`
	TessdataPrefix    string   `mapstructure:"tessdata_prefix"`
	Prepare           bool     `mapstructure:"prepare"`
	Contrast          float64  `mapstructure:"contrast"`
	MinHeight         int      `mapstructure:"min_height"`
	CropToText        bool     `mapstructure:"crop_to_text"`
	MinTextConfidence float64  `mapstructure:"min_text_confidence"`
}

type TTSConfig struct {
	Binary    string `mapstructure:"binary"`
	Rate      int    `mapstructure:"rate"`
	Preferred string `mapstructure:"preferred"`
	Fallback  string `mapstructure:"fallback"`
}

type STTConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Model    string        `mapstructure:"model"`
	Language string        `mapstructure:"language"`
	Recorder string        `mapstructure:"recorder"`
	Window   time.Duration `mapstructure:"window"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Triggers []string      `mapstructure:"triggers"`
}

type PermissionsConfig struct {
	// AssumeGranted lists capabilities granted without prompting.
	AssumeGranted []string `mapstructure:"assume_granted"`
	// Devices maps a capability to a device path that must exist.
	Devices map[string]string `mapstructure:"devices"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type OverlayConfig struct {
	PreviewLength int    `mapstructure:"preview_length"`
	Foreground    string `mapstructure:"foreground"`
	Background    string `mapstructure:"background"`
	ShowPreview   bool   `mapstructure:"show_preview"`
}

// SetDefaults registers every default on v. Every key in Config needs one:
// AutomaticEnv only applies to keys viper already knows, so a key without a
// default cannot be set from the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("camera.source", SourceCommand)
	v.SetDefault("camera.command", camera.DefaultCaptureCommand)
	v.SetDefault("camera.dir", "")
	v.SetDefault("camera.interval", 500*time.Millisecond)
	v.SetDefault("camera.loop", true)
	v.SetDefault("camera.rotation", 0)

	v.SetDefault("ocr.languages", []string{"eng", "hin"})
	v.SetDefault("ocr.tessdata_prefix", "")
	v.SetDefault("ocr.prepare", true)
	v.SetDefault("ocr.contrast", 0.3)
	v.SetDefault("ocr.min_height", 480)
	v.SetDefault("ocr.crop_to_text", false)
	v.SetDefault("ocr.min_text_confidence", 0.3)

	v.SetDefault("tts.binary", "espeak-ng")
	v.SetDefault("tts.rate", 0)
	v.SetDefault("tts.preferred", "hi-IN")
	v.SetDefault("tts.fallback", "en")

	v.SetDefault("stt.enabled", true)
	v.SetDefault("stt.api_key", "")
	v.SetDefault("stt.base_url", "")
	v.SetDefault("stt.model", "whisper-1")
	v.SetDefault("stt.language", "hi-IN")
	v.SetDefault("stt.recorder", "arecord")
	v.SetDefault("stt.window", 4*time.Second)
	v.SetDefault("stt.timeout", 30*time.Second)
	v.SetDefault("stt.triggers", []string{})

	v.SetDefault("permissions.assume_granted", []string{})
	v.SetDefault("permissions.devices", map[string]string{
		string(permission.Camera): "/dev/video0",
	})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "smart-ocr.log")

	v.SetDefault("overlay.preview_length", 50)
	v.SetDefault("overlay.foreground", "#FFFFFF")
	v.SetDefault("overlay.background", "#00000080")
	v.SetDefault("overlay.show_preview", true)
}

// BindFlags binds the command-line flags that override configuration keys.
// Flags that are not defined in fs are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	bindings := map[string]string{
		"camera.source": "source",
		"camera.dir":    "dir",
		"log.level":     "log-level",
		"log.file":      "log-file",
		"stt.api_key":   "openai-api-key",
	}
	for key, name := range bindings {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads configuration into a validated Config. file may be empty, in
// which case smart-ocr.yaml is looked up in the working directory and the
// user config directory, and a missing file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("stt.api_key", EnvPrefix+"_STT_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("smart-ocr")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "smart-ocr"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	var errs []error

	switch c.Camera.Source {
	case SourceCommand:
		if len(c.Camera.Command) == 0 {
			errs = append(errs, errors.New("camera.command must not be empty"))
		}
	case SourceDir:
		if c.Camera.Dir == "" {
			errs = append(errs, errors.New("camera.dir is required when camera.source is dir"))
		}
	default:
		errs = append(errs, fmt.Errorf("camera.source must be %q or %q, got %q", SourceCommand, SourceDir, c.Camera.Source))
	}
	if c.Camera.Rotation%90 != 0 {
		errs = append(errs, fmt.Errorf("camera.rotation must be a multiple of 90, got %d", c.Camera.Rotation))
	}
	if c.Camera.Interval <= 0 {
		errs = append(errs, errors.New("camera.interval must be positive"))
	}

	if len(c.OCR.Languages) == 0 {
		errs = append(errs, errors.New("ocr.languages must not be empty"))
	}
	if c.OCR.MinTextConfidence < 0 || c.OCR.MinTextConfidence > 1 {
		errs = append(errs, fmt.Errorf("ocr.min_text_confidence must be in [0,1], got %g", c.OCR.MinTextConfidence))
	}

	for key, tag := range map[string]string{"tts.preferred": c.TTS.Preferred, "tts.fallback": c.TTS.Fallback, "stt.language": c.STT.Language} {
		if _, err := language.Parse(tag); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid language tag %q", key, tag))
		}
	}

	if c.STT.Window < time.Second {
		errs = append(errs, errors.New("stt.window must be at least 1s"))
	}

	for _, name := range c.Permissions.AssumeGranted {
		if _, err := ParseCapability(name); err != nil {
			errs = append(errs, err)
		}
	}
	for name := range c.Permissions.Devices {
		if _, err := ParseCapability(name); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Overlay.PreviewLength < 1 {
		errs = append(errs, errors.New("overlay.preview_length must be positive"))
	}

	return errors.Join(errs...)
}

// ParseCapability maps a configuration name to a permission capability.
func ParseCapability(name string) (permission.Capability, error) {
	switch c := permission.Capability(strings.ToLower(strings.TrimSpace(name))); c {
	case permission.Camera, permission.Microphone:
		return c, nil
	default:
		return "", fmt.Errorf("unknown capability %q", name)
	}
}

// AssumedGrants returns AssumeGranted as capabilities. Call after Validate.
func (p PermissionsConfig) AssumedGrants() []permission.Capability {
	var caps []permission.Capability
	for _, name := range p.AssumeGranted {
		if c, err := ParseCapability(name); err == nil {
			caps = append(caps, c)
		}
	}
	return caps
}

// DevicePaths returns Devices keyed by capability. Call after Validate.
func (p PermissionsConfig) DevicePaths() map[permission.Capability]string {
	paths := make(map[permission.Capability]string, len(p.Devices))
	for name, path := range p.Devices {
		if c, err := ParseCapability(name); err == nil {
			paths[c] = path
		}
	}
	return paths
}
