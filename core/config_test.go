package core_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devblok/orbiter/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigurationFromDotenv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "orbiter.env")
	require.NoError(t, os.WriteFile(file, []byte(
		"ORBITER_ASSETS=/srv/assets\n"+
			"ORBITER_FETCH_TIMEOUT=250ms\n"+
			"ORBITER_FPS=30\n"+
			"ORBITER_DEBUG=true\n"), 0o644))

	for _, key := range []string{core.EnvAssets, core.EnvFetchTimeout, core.EnvFPS, core.EnvDebug} {
		key := key
		prev, had := os.LookupEnv(key)
		os.Unsetenv(key)
		t.Cleanup(func() {
			if had {
				os.Setenv(key, prev)
			} else {
				os.Unsetenv(key)
			}
		})
	}

	cfg, err := core.LoadConfiguration(file)
	require.NoError(t, err)

	assert.Equal(t, "/srv/assets", cfg.Assets.Root)
	assert.Equal(t, 250*time.Millisecond, cfg.Assets.FetchTimeout)
	assert.Equal(t, 30, cfg.Time.FramesPerSecond)
	assert.True(t, cfg.Renderer.DebugMode)
	assert.Equal(t, core.DefaultConfiguration.Assets.Manifest, cfg.Assets.Manifest)
}

func TestLoadConfigurationBadValue(t *testing.T) {
	t.Setenv(core.EnvFPS, "sixty")
	_, err := core.LoadConfiguration()
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	assert.NoError(t, core.SetupLogging(core.LogConfiguration{Level: "debug", Format: "json"}))
	assert.Error(t, core.SetupLogging(core.LogConfiguration{Level: "loud"}))
	assert.Error(t, core.SetupLogging(core.LogConfiguration{Level: "info", Format: "xml"}))
	assert.NoError(t, core.SetupLogging(core.DefaultConfiguration.Log))
}
