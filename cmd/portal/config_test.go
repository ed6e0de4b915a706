package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("missing file yields an empty configuration", func(t *testing.T) {
		c, err := loadConfig(filepath.Join(t.TempDir(), "no-such-file"))
		require.Nil(t, err)
		assert.Equal(t, &config{}, c)
	})
	t.Run("rjson file is parsed", func(t *testing.T) {
		pathname := filepath.Join(t.TempDir(), "portal.config")
		require.Nil(t, os.WriteFile(pathname, []byte(`{
	bucket: "cocky-kare",
	debug: true,
	store: {type: "bolt", path: "/tmp/store.db"}
}`), 0600))
		c, err := loadConfig(pathname)
		require.Nil(t, err)
		assert.Equal(t, "cocky-kare", c.Bucket)
		assert.True(t, c.Debug)
		assert.Equal(t, "bolt", c.Store.Type)
		assert.Equal(t, "/tmp/store.db", c.Store.Path)
	})
}

func TestApplyEnvironment(t *testing.T) {
	t.Setenv("GCS_BUCKET", "from-env")
	t.Setenv("PORT", "9001")
	c := &config{Bucket: "from-file", Port: 8000}
	c.applyEnvironment()
	assert.Equal(t, "from-env", c.Bucket)
	assert.Equal(t, 9001, c.Port)
}

func TestApplyDefaults(t *testing.T) {
	var c config
	c.applyDefaultsForMissingProperties()
	assert.Equal(t, 8000, c.Port)
	assert.Equal(t, "gcs", c.Store.Type)

	var b config
	b.Store.Type = "bolt"
	b.applyDefaultsForMissingProperties()
	assert.Equal(t, "$HOME/lib/cloudbank/store.db", b.Store.Path)
}
