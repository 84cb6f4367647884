package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/jsonlbuf/pkg/compress"
	"github.com/ssargent/jsonlbuf/pkg/record"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, compress.Gzip, config.Format.Compression)
	assert.Equal(t, record.NoFlattening, config.Format.Flattening)
	assert.False(t, config.Format.StrictReservedFields)
	assert.Equal(t, "./data/buffers", config.Storage.BufferDir)
	assert.Equal(t, "./data/segments", config.Storage.SegmentDir)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Bind)
	assert.Equal(t, "auto", config.Server.APIKey)
	assert.Equal(t, "info", config.Logging.Level)
	assert.NoError(t, config.Validate())
}

func TestValidate(t *testing.T) {
	config := DefaultConfig()
	config.Server.Port = 0
	config.Server.MaxBodyBytes = -1
	config.Storage.SegmentDir = ""

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "server.max_body_bytes")
	assert.Contains(t, err.Error(), "storage.segment_dir")
}

func TestGenerateSecureKey(t *testing.T) {
	t.Run("generate 32 byte key", func(t *testing.T) {
		key, err := GenerateSecureKey(32)
		require.NoError(t, err)
		assert.Len(t, key, 64) // hex encoded

		_, err = hex.DecodeString(key)
		assert.NoError(t, err)
	})

	t.Run("keys are unique", func(t *testing.T) {
		a, err := GenerateSecureKey(16)
		require.NoError(t, err)
		b, err := GenerateSecureKey(16)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestSaveAndLoadConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	original := DefaultConfig()
	original.Format.Compression = compress.Zstd
	original.Format.Flattening = record.RootLevelFlattening
	original.Format.StrictReservedFields = true
	original.Server.Port = 9090
	original.Server.APIKey = "secret"

	require.NoError(t, SaveConfig(original, configPath))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestLoadConfig_WrittenNames(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `format:
  compression: GZIP
  flattening: Root level flattening
server:
  port: 7000
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, compress.Gzip, config.Format.Compression)
	assert.Equal(t, record.RootLevelFlattening, config.Format.Flattening)
	assert.Equal(t, 7000, config.Server.Port)

	// Missing fields keep defaults
	assert.Equal(t, "./data/segments", config.Storage.SegmentDir)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config file does not exist")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("format: [unclosed"), 0600))

		_, err := LoadConfig(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("unknown compression", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("format:\n  compression: brotli\n"), 0600))

		_, err := LoadConfig(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestBootstrapConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	dataDir := filepath.Join(dir, "data")

	config, err := BootstrapConfig(configPath, dataDir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dataDir, "buffers"), config.Storage.BufferDir)
	assert.Equal(t, filepath.Join(dataDir, "segments"), config.Storage.SegmentDir)
	assert.Len(t, config.Server.APIKey, 64)
	assert.True(t, ConfigExists(configPath))

	raw, err := os.ReadFile(configPath)
	require.NoError(t, err)

	var onDisk map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &onDisk))
	format, ok := onDisk["format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "gzip", format["compression"])
	assert.Equal(t, "No flattening", format["flattening"])
}

func TestConfigExists(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, ConfigExists(filepath.Join(dir, "nope.yaml")))

	path := filepath.Join(dir, "yes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0600))
	assert.True(t, ConfigExists(path))
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()
	assert.Equal(t, "config.yaml", filepath.Base(path))
}
