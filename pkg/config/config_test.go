package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigFromFile_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "conf.ini")

	cfg, err := NewConfigFromFile(path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	assert.Equal(t, 8091, cfg.GetInt(KeyServerPort))
	assert.Equal(t, "local", cfg.GetString(KeyStorageType))
	assert.Equal(t, "cms-assets", cfg.GetString(KeyStorageContainer))
	assert.Equal(t, "0 */10 * * * *", cfg.GetString(KeyMediaSweepCron))
	assert.False(t, cfg.GetBool(KeyServerDebug))
}

func TestNewConfigFromFile_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.ini")
	require.NoError(t, os.WriteFile(path, []byte("[Storage]\nType = local\nBucket = from-file\n"), 0o644))

	t.Setenv("ANHEYU_STORAGE_BUCKET", "from-env")
	t.Setenv("ANHEYU_MEDIA_CONCURRENCY", "3")

	cfg, err := NewConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.GetString(KeyStorageBucket))
	assert.Equal(t, 3, cfg.GetInt(KeyMediaConcurrency))
	assert.Equal(t, "local", cfg.GetString(KeyStorageType))
}

func TestNewConfigFromFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.ini")
	require.NoError(t, os.WriteFile(path, []byte("[Storage\nType = local\n"), 0o644))

	_, err := NewConfigFromFile(path)
	assert.Error(t, err)
}

func TestGetOrDefaults(t *testing.T) {
	cfg := NewConfigFromMap(map[string]interface{}{
		KeyStorageContainer: "  ",
		KeyMediaQuality:     -1,
		KeyMediaMaxWidth:    1280,
	})

	testCases := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"空白字符串使用默认值", cfg.GetStringOr(KeyStorageContainer, "cms-assets"), "cms-assets"},
		{"未配置字符串使用默认值", cfg.GetStringOr(KeyStorageBucket, "b"), "b"},
		{"非法整数使用默认值", cfg.GetIntOr(KeyMediaQuality, 82), 82},
		{"已配置整数", cfg.GetIntOr(KeyMediaMaxWidth, 1920), 1280},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.got)
		})
	}
}
