package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	mgr := NewManager(path)

	s, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	_, err = os.Stat(path)
	require.NoError(t, err, "defaults should be written to disk")
}

func TestManagerLoadFillsMissingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":{"port":9000},"metadata":{"tmdbApiKey":"k"},"geo":{"defaultCountry":"gb"},"catalog":{}}`), 0o644))

	s, err := NewManager(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, s.Server.Port)
	assert.Equal(t, "k", s.Metadata.TMDBAPIKey)
	assert.Equal(t, "en-US", s.Metadata.Language)
	assert.Equal(t, "GB", s.Geo.DefaultCountry)
	assert.Equal(t, 500, s.Catalog.MaxPages)
	assert.Equal(t, 20, s.Metadata.CastLimit)
}

func TestManagerSaveRoundTrip(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "settings.json"))
	s := DefaultSettings()
	s.Metadata.TMDBToken = "token"
	s.Server.Port = 8181
	require.NoError(t, mgr.Save(s))

	loaded, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, "token", loaded.Metadata.TMDBToken)
	assert.Equal(t, 8181, loaded.Server.Port)

	_, err = os.Stat(mgr.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestValidate(t *testing.T) {
	s := DefaultSettings()
	assert.Error(t, s.Validate(), "missing credentials")

	s.Metadata.TMDBToken = "token"
	assert.NoError(t, s.Validate())

	s.Server.Port = 0
	assert.Error(t, s.Validate())
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nFLIKZ_TEST_A=from-file\nexport FLIKZ_TEST_B=\"quoted\"\nFLIKZ_TEST_C=file\nbroken line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("FLIKZ_TEST_C", "from-env")
	os.Unsetenv("FLIKZ_TEST_A")
	os.Unsetenv("FLIKZ_TEST_B")
	t.Cleanup(func() {
		os.Unsetenv("FLIKZ_TEST_A")
		os.Unsetenv("FLIKZ_TEST_B")
	})

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("FLIKZ_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("FLIKZ_TEST_B"))
	assert.Equal(t, "from-env", os.Getenv("FLIKZ_TEST_C"))
}

func TestLoadEnvFileMissing(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "nope.env")))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TMDB_TOKEN", "abc")
	t.Setenv("FLIKZ_PORT", "9090")
	t.Setenv("FLIKZ_LOG_LEVEL", "DEBUG")
	t.Setenv("IPINFO_TOKEN", "ip")

	s := DefaultSettings()
	ApplyEnv(&s)
	assert.Equal(t, "abc", s.Metadata.TMDBToken)
	assert.Equal(t, 9090, s.Server.Port)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "ip", s.Geo.IPInfoToken)
}
