// Package config loads inkcam settings from a .env file, the environment
// and command-line flags, in that order of precedence from lowest to highest.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Segmenter names accepted by INKCAM_SEGMENTER.
const (
	SegmenterSkin      = "skin"
	SegmenterMediaPipe = "mediapipe"
)

// Config holds the runtime settings.
type Config struct {
	Addr            string
	DataDir         string
	WebDir          string
	FrontCamera     int
	BackCamera      int
	PluginDir       string
	Segmenter       string
	BlendPlugin     string
	ChangeThreshold float64

	// Window opens the native viewer instead of the tray.
	Window bool
	// DesignPath is the image the viewer's open key loads.
	DesignPath string
}

// Default returns the built-in settings.
func Default() *Config {
	dataDir := ".inkcam"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".inkcam")
	}
	return &Config{
		Addr:            ":8080",
		DataDir:         dataDir,
		FrontCamera:     0,
		BackCamera:      1,
		PluginDir:       filepath.Join(dataDir, "plugins"),
		Segmenter:       SegmenterSkin,
		ChangeThreshold: 1.0,
	}
}

// Load reads the given .env files (".env" when none are given) and applies
// INKCAM_* environment variables over the defaults. Missing files are
// skipped; a file that cannot be parsed is an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	if v := os.Getenv("INKCAM_DATA_DIR"); v != "" {
		cfg.DataDir = v
		cfg.PluginDir = filepath.Join(v, "plugins")
	}

	strs := map[string]*string{
		"INKCAM_ADDR":         &cfg.Addr,
		"INKCAM_WEB_DIR":      &cfg.WebDir,
		"INKCAM_PLUGIN_DIR":   &cfg.PluginDir,
		"INKCAM_SEGMENTER":    &cfg.Segmenter,
		"INKCAM_BLEND_PLUGIN": &cfg.BlendPlugin,
		"INKCAM_DESIGN":       &cfg.DesignPath,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"INKCAM_FRONT_CAMERA": &cfg.FrontCamera,
		"INKCAM_BACK_CAMERA":  &cfg.BackCamera,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if v := os.Getenv("INKCAM_CHANGE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("INKCAM_CHANGE_THRESHOLD: %w", err)
		}
		cfg.ChangeThreshold = f
	}

	return cfg, cfg.Validate()
}

// BindFlags registers flags on fs that override the loaded values.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP listen address")
	fs.StringVar(&c.DataDir, "data", c.DataDir, "data directory")
	fs.StringVar(&c.WebDir, "web", c.WebDir, "static web directory")
	fs.IntVar(&c.FrontCamera, "front", c.FrontCamera, "front camera device index")
	fs.IntVar(&c.BackCamera, "back", c.BackCamera, "back camera device index")
	fs.StringVar(&c.PluginDir, "plugins", c.PluginDir, "plugin directory")
	fs.StringVar(&c.Segmenter, "segmenter", c.Segmenter, "skin segmenter: skin or mediapipe")
	fs.StringVar(&c.BlendPlugin, "blend", c.BlendPlugin, "blend plugin name, auto for the first one found (empty for passthrough)")
	fs.Float64Var(&c.ChangeThreshold, "change", c.ChangeThreshold, "scene change percentage that triggers re-estimation")
	fs.BoolVar(&c.Window, "window", c.Window, "open the native viewer window")
	fs.StringVar(&c.DesignPath, "design", c.DesignPath, "design image opened by the viewer")
}

// Validate checks values that cannot be used as given.
func (c *Config) Validate() error {
	switch c.Segmenter {
	case SegmenterSkin, SegmenterMediaPipe:
	default:
		return fmt.Errorf("unknown segmenter %q", c.Segmenter)
	}
	if c.ChangeThreshold <= 0 || c.ChangeThreshold > 100 {
		return fmt.Errorf("change threshold %v out of range (0, 100]", c.ChangeThreshold)
	}
	if c.FrontCamera < 0 || c.BackCamera < 0 {
		return fmt.Errorf("camera device indexes must not be negative")
	}
	return nil
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "inkcam.db")
}
