package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigReadsFileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "fswatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("watch_dir: /srv/docs\nsink:\n  schema: files\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FSWATCH_SINK_APP_KEY=from-dotenv\n"), 0o644))
	t.Setenv("FSWATCH_SINK_SCHEMA", "from-env")
	t.Cleanup(func() { os.Unsetenv("FSWATCH_SINK_APP_KEY") })

	require.NoError(t, initConfig(path))

	assert.Equal(t, "/srv/docs", viper.GetString("watch_dir"))
	assert.Equal(t, "from-env", viper.GetString("sink.schema"))
	assert.Equal(t, "from-dotenv", viper.GetString("sink.app_key"))
}

func TestInitConfigWithoutFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Chdir(t.TempDir())

	assert.NoError(t, initConfig(""))
}

func TestInitConfigBrokenFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "fswatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("watch_dir: [unterminated"), 0o644))

	assert.Error(t, initConfig(path))
}
