package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"INKCAM_ADDR", "INKCAM_DATA_DIR", "INKCAM_WEB_DIR", "INKCAM_FRONT_CAMERA",
	"INKCAM_BACK_CAMERA", "INKCAM_PLUGIN_DIR", "INKCAM_SEGMENTER",
	"INKCAM_BLEND_PLUGIN", "INKCAM_CHANGE_THRESHOLD", "INKCAM_DESIGN",
}

// clearEnv unsets every INKCAM_ variable for the test and restores them after.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, 0, cfg.FrontCamera)
	require.Equal(t, 1, cfg.BackCamera)
	require.Equal(t, SegmenterSkin, cfg.Segmenter)
	require.Equal(t, 1.0, cfg.ChangeThreshold)
	require.Equal(t, filepath.Join(cfg.DataDir, "plugins"), cfg.PluginDir)
	require.Equal(t, filepath.Join(cfg.DataDir, "inkcam.db"), cfg.DBPath())
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	content := "INKCAM_ADDR=127.0.0.1:9000\n" +
		"INKCAM_DATA_DIR=" + dir + "\n" +
		"INKCAM_BACK_CAMERA=2\n" +
		"INKCAM_SEGMENTER=mediapipe\n" +
		"INKCAM_BLEND_PLUGIN=passthrough-blend\n" +
		"INKCAM_CHANGE_THRESHOLD=2.5\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0644))

	cfg, err := Load(envFile)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.Addr)
	require.Equal(t, dir, cfg.DataDir)
	require.Equal(t, filepath.Join(dir, "plugins"), cfg.PluginDir)
	require.Equal(t, 2, cfg.BackCamera)
	require.Equal(t, SegmenterMediaPipe, cfg.Segmenter)
	require.Equal(t, "passthrough-blend", cfg.BlendPlugin)
	require.Equal(t, 2.5, cfg.ChangeThreshold)
}

func TestLoad_EnvironmentWinsOverFile(t *testing.T) {
	clearEnv(t)

	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("INKCAM_ADDR=:7000\n"), 0644))
	t.Setenv("INKCAM_ADDR", ":7001")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	require.Equal(t, ":7001", cfg.Addr)
}

func TestLoad_EnvFileErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.env")
	require.NoError(t, os.WriteFile(good, []byte("INKCAM_ADDR=:7100\n"), 0644))
	cfg, err := Load(filepath.Join(dir, "missing.env"), good)
	require.NoError(t, err, "a missing file is skipped")
	require.Equal(t, ":7100", cfg.Addr)

	clearEnv(t)
	broken := filepath.Join(dir, "broken.env")
	require.NoError(t, os.WriteFile(broken, []byte("INKCAM_ADDR=\"unterminated\n"), 0644))
	_, err = Load(broken)
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken.env")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"INKCAM_FRONT_CAMERA", "first"},
		{"INKCAM_CHANGE_THRESHOLD", "lots"},
		{"INKCAM_CHANGE_THRESHOLD", "0"},
		{"INKCAM_SEGMENTER", "tensorflow"},
		{"INKCAM_BACK_CAMERA", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)
		})
	}
}

func TestBindFlags(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	fs := flag.NewFlagSet("inkcam", flag.ContinueOnError)
	cfg.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-addr", ":9090", "-window", "-design", "rose.png", "-front", "3"}))

	require.Equal(t, ":9090", cfg.Addr)
	require.True(t, cfg.Window)
	require.Equal(t, "rose.png", cfg.DesignPath)
	require.Equal(t, 3, cfg.FrontCamera)
	require.NoError(t, cfg.Validate())
}
