package metadata

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCacheExpiresEntries(t *testing.T) {
	cache := newFileCache(afero.NewMemMapFs(), 1)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	key := cacheKey("genres", "movie", "en-US")
	require.NoError(t, cache.set(key, []string{"Action", "Drama"}))

	var got []string
	require.True(t, cache.get(key, &got))
	assert.Equal(t, []string{"Action", "Drama"}, got)

	now = now.Add(61 * time.Minute)
	got = nil
	assert.False(t, cache.get(key, &got), "entry older than the ttl must miss")
}

func TestFileCacheClear(t *testing.T) {
	fs := afero.NewMemMapFs()
	cache := newFileCache(fs, 24)
	require.NoError(t, cache.set(cacheKey("a"), 1))
	require.NoError(t, cache.set(cacheKey("b"), 2))

	require.NoError(t, cache.clear())

	var v int
	assert.False(t, cache.get(cacheKey("a"), &v))
	entries, err := afero.ReadDir(fs, "/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCacheKeyIsStable(t *testing.T) {
	assert.Equal(t, cacheKey("movie", "1", "en-US"), cacheKey("movie", "1", "en-US"))
	assert.NotEqual(t, cacheKey("movie", "1", "en-US"), cacheKey("movie", "1", "he"))
	assert.Len(t, cacheKey("x"), 40)
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "en-US", normalizeLanguage("en_us", "fr"))
	assert.Equal(t, "he", normalizeLanguage("he", "en-US"))
	assert.Equal(t, "en-US", normalizeLanguage("", "en-US"))
	assert.Equal(t, "en-US", normalizeLanguage("not a tag!", "en-US"))
	assert.Equal(t, "fr", baseLanguage("fr-FR"))
}

func TestEndpointLabelCollapsesIDs(t *testing.T) {
	assert.Equal(t, "/movie/:id/credits", endpointLabel("movie/27205/credits"))
	assert.Equal(t, "/tv/:id/season/:id", endpointLabel("tv/1/season/2"))
	assert.Equal(t, "/discover/movie", endpointLabel("discover/movie"))
}

func TestFileCacheSweepRemovesExpired(t *testing.T) {
	fs := afero.NewMemMapFs()
	cache := newFileCache(fs, 1)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.set(cacheKey("old"), 1))
	now = now.Add(2 * time.Hour)
	require.NoError(t, cache.set(cacheKey("fresh"), 2))
	require.NoError(t, afero.WriteFile(fs, "/broken.json", []byte("{"), 0o644))

	removed, err := cache.sweep()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	var v int
	assert.True(t, cache.get(cacheKey("fresh"), &v))
	assert.Equal(t, 2, v)
	entries, err := afero.ReadDir(fs, "/")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
