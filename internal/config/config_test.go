package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, localPath string) {
	t.Helper()
	body := fmt.Sprintf("server:\n  port: \"8080\"\nstorage:\n  type: local\n  local_path: %q\n", localPath)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
}

func TestLoadConfigCreatesLocalStorageDir(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	writeConfigFile(t, dir, uploads)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, uploads, cfg.Storage.LocalPath)

	info, err := os.Stat(uploads)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoadConfigFailsWhenLocalStorageDirCannotBeCreated(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	writeConfigFile(t, dir, filepath.Join(blocker, "uploads"))

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create local storage dir")
}
