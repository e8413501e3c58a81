// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
)

// Environment variables read by LoadConfiguration
const (
	EnvAssets       = "ORBITER_ASSETS"
	EnvArchive      = "ORBITER_ARCHIVE"
	EnvBaseURL      = "ORBITER_BASE_URL"
	EnvManifest     = "ORBITER_MANIFEST"
	EnvFetchTimeout = "ORBITER_FETCH_TIMEOUT"
	EnvFPS          = "ORBITER_FPS"
	EnvBackend      = "ORBITER_BACKEND"
	EnvDebug        = "ORBITER_DEBUG"
	EnvLogLevel     = "ORBITER_LOG_LEVEL"
	EnvLogFormat    = "ORBITER_LOG_FORMAT"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Assets   AssetConfiguration
	Time     TimeConfiguration
	Renderer RendererConfiguration
	Log      LogConfiguration
}

// AssetConfiguration tells the loader where assets come from. At most one
// of Root, Archive and BaseURL is expected to be set; an empty set means
// the assets embedded into the binary.
type AssetConfiguration struct {
	Root         string
	Archive      string
	BaseURL      string
	Manifest     string
	FetchTimeout time.Duration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int
}

// RendererConfiguration selects and configures the gfx backend
type RendererConfiguration struct {
	// Backend is either "headless" or "vulkan"
	Backend   string
	DebugMode bool
}

// LogConfiguration configures logrus
type LogConfiguration struct {
	Level  string
	Format string
}

// DefaultConfiguration is used for anything not set in the environment
var DefaultConfiguration = Configuration{
	Assets: AssetConfiguration{
		Manifest:     "scene.json",
		FetchTimeout: 10 * time.Second,
	},
	Time: TimeConfiguration{
		FramesPerSecond: 60,
	},
	Renderer: RendererConfiguration{
		Backend: "headless",
	},
	Log: LogConfiguration{
		Level:  "info",
		Format: "text",
	},
}

// LoadConfiguration reads the given dotenv files into the environment,
// existing variables win, and builds a Configuration from it on top of
// DefaultConfiguration.
func LoadConfiguration(files ...string) (Configuration, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Configuration{}, fmt.Errorf("godotenv.Load(): %s", err.Error())
		}
	}
	envy.Reload()

	cfg := DefaultConfiguration
	cfg.Assets.Manifest = envy.Get(EnvManifest, cfg.Assets.Manifest)
	cfg.Assets.BaseURL = envy.Get(EnvBaseURL, cfg.Assets.BaseURL)
	cfg.Renderer.Backend = envy.Get(EnvBackend, cfg.Renderer.Backend)
	cfg.Log.Level = envy.Get(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Format = envy.Get(EnvLogFormat, cfg.Log.Format)

	var err error
	if cfg.Assets.Root, err = homedir.Expand(envy.Get(EnvAssets, cfg.Assets.Root)); err != nil {
		return Configuration{}, fmt.Errorf("%s: %s", EnvAssets, err.Error())
	}
	if cfg.Assets.Archive, err = homedir.Expand(envy.Get(EnvArchive, cfg.Assets.Archive)); err != nil {
		return Configuration{}, fmt.Errorf("%s: %s", EnvArchive, err.Error())
	}

	if v := envy.Get(EnvFetchTimeout, ""); v != "" {
		if cfg.Assets.FetchTimeout, err = time.ParseDuration(v); err != nil {
			return Configuration{}, fmt.Errorf("%s: %s", EnvFetchTimeout, err.Error())
		}
	}
	if v := envy.Get(EnvFPS, ""); v != "" {
		if cfg.Time.FramesPerSecond, err = strconv.Atoi(v); err != nil {
			return Configuration{}, fmt.Errorf("%s: %s", EnvFPS, err.Error())
		}
	}
	if v := envy.Get(EnvDebug, ""); v != "" {
		if cfg.Renderer.DebugMode, err = strconv.ParseBool(v); err != nil {
			return Configuration{}, fmt.Errorf("%s: %s", EnvDebug, err.Error())
		}
	}
	return cfg, nil
}
