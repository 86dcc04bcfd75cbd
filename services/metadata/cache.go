package metadata

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"flikz/internal/metrics"

	"github.com/spf13/afero"
)

// fileCache stores JSON responses as one file per key with a TTL.
type fileCache struct {
	fs  afero.Fs
	ttl time.Duration
	now func() time.Time
	mu  sync.Mutex
}

type cacheEntry struct {
	StoredAt time.Time       `json:"storedAt"`
	Payload  json.RawMessage `json:"payload"`
}

func newFileCache(fs afero.Fs, ttlHours int) *fileCache {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	return &fileCache{fs: fs, ttl: time.Duration(ttlHours) * time.Hour, now: time.Now}
}

// newDiskCache roots a cache at dir on the OS filesystem.
func newDiskCache(dir string, ttlHours int) *fileCache {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return newFileCache(afero.NewMemMapFs(), ttlHours)
	}
	return newFileCache(afero.NewBasePathFs(afero.NewOsFs(), dir), ttlHours)
}

func cacheKey(parts ...string) string {
	h := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}

func (c *fileCache) path(key string) string {
	return "/" + key + ".json"
}

func (c *fileCache) get(key string, v any) bool {
	data, err := afero.ReadFile(c.fs, c.path(key))
	if err != nil {
		metrics.RecordCacheLookup("metadata", false)
		return false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || c.now().Sub(entry.StoredAt) > c.ttl {
		metrics.RecordCacheLookup("metadata", false)
		return false
	}
	if err := json.Unmarshal(entry.Payload, v); err != nil {
		metrics.RecordCacheLookup("metadata", false)
		return false
	}
	metrics.RecordCacheLookup("metadata", true)
	return true
}

func (c *fileCache) set(key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data, err := json.Marshal(cacheEntry{StoredAt: c.now(), Payload: payload})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	tmp := c.path(key) + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, data, 0o644); err != nil {
		return err
	}
	return c.fs.Rename(tmp, c.path(key))
}

// clear removes every cached entry.
func (c *fileCache) clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := afero.ReadDir(c.fs, "/")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := c.fs.Remove("/" + entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

// sweep deletes entries older than the ttl and unreadable leftovers, and
// reports how many files it removed.
func (c *fileCache) sweep() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := afero.ReadDir(c.fs, "/")
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, info := range entries {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			continue
		}
		name := "/" + info.Name()
		data, err := afero.ReadFile(c.fs, name)
		if err != nil {
			continue
		}
		var entry cacheEntry
		if err := json.Unmarshal(data, &entry); err == nil && c.now().Sub(entry.StoredAt) <= c.ttl {
			continue
		}
		if err := c.fs.Remove(name); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
