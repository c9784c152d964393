package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cmd := rootCmd()
	require.NoError(t, cmd.ParseFlags(nil))
	configPath = "settings.yaml"

	settings, err := loadSettings(cmd)
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(filepath.Dir(settings.Paths.UsersDir))
	require.NoError(t, err)
	assert.Equal(t, resolved, got)
}

func TestLoadSettingsRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  page_budget: 0\n"), 0600))

	cmd := rootCmd()
	configPath = path
	_, err := loadSettings(cmd)
	assert.ErrorContains(t, err, "page_budget")
}

func TestControlRejectsUnknownCommand(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"control", "reboot", "--addr", "127.0.0.1:1"})
	err := cmd.Execute()
	assert.ErrorContains(t, err, "unknown command")
}
