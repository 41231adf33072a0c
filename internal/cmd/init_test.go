package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/soundcheck/internal/config"
)

func execInit(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"init"}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		initYes = false
		initForce = false
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestInitYesWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soundcheck.yaml")

	out, err := execInit(t, "--yes", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Server.Model, cfg.Server.Model)
	assert.Equal(t, config.Default().Bench.Listen, cfg.Bench.Listen)
}

func TestInitRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soundcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9999\n"), 0o644))

	_, err := execInit(t, "--yes", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	// The existing file is untouched.
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestInitForceOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soundcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9999\n"), 0o644))

	_, err := execInit(t, "--yes", "--force", "--config", path)
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Server.Port, cfg.Server.Port)
}
