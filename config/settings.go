package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server    ServerSettings    `json:"server"`
	Metadata  MetadataSettings  `json:"metadata"`
	Cache     CacheSettings     `json:"cache"`
	Database  DatabaseSettings  `json:"database"`
	Geo       GeoSettings       `json:"geo"`
	Catalog   CatalogSettings   `json:"catalog"`
	RateLimit RateLimitSettings `json:"rateLimit"`
	Log       LogConfig         `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// Brand is shown in page titles and the header.
	Brand string `json:"brand"`
	// AllowedOrigins feeds the CORS policy of /api. Empty allows any origin.
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

type MetadataSettings struct {
	TMDBAPIKey string `json:"tmdbApiKey"`
	// TMDBToken is a v4 read access token sent as a bearer header. It wins over the API key.
	TMDBToken         string `json:"tmdbToken"`
	Language          string `json:"language"`
	CastLimit         int    `json:"castLimit"`
	RequestIntervalMS int    `json:"requestIntervalMs"`
}

type CacheSettings struct {
	Directory        string `json:"directory"`
	MetadataTTLHours int    `json:"metadataTtlHours"`
}

// DatabaseSettings points at the sqlite file holding client preferences.
type DatabaseSettings struct {
	Path string `json:"path"`
}

type GeoSettings struct {
	IPInfoURL       string `json:"ipinfoUrl"`
	IPInfoToken     string `json:"ipinfoToken"`
	NominatimURL    string `json:"nominatimUrl"`
	DefaultCountry  string `json:"defaultCountry"`
	CacheTTLMinutes int    `json:"cacheTtlMinutes"`
	CacheSize       int    `json:"cacheSize"`
}

// CatalogSettings controls the infinite scroll feeds kept per client.
type CatalogSettings struct {
	MaxPages          int `json:"maxPages"`
	MaxSessions       int `json:"maxSessions"`
	SessionTTLMinutes int `json:"sessionTtlMinutes"`
	HomeRowSize       int `json:"homeRowSize"`
}

type RateLimitSettings struct {
	Enabled           bool `json:"enabled"`
	RequestsPerMinute int  `json:"requestsPerMinute"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 7878, Brand: "Flikz"},
		Metadata: MetadataSettings{
			Language:          "en-US",
			CastLimit:         20,
			RequestIntervalMS: 20,
		},
		Cache:    CacheSettings{Directory: "cache", MetadataTTLHours: 24},
		Database: DatabaseSettings{Path: filepath.Join("cache", "flikz.db")},
		Geo: GeoSettings{
			IPInfoURL:       "https://ipinfo.io",
			NominatimURL:    "https://nominatim.openstreetmap.org",
			DefaultCountry:  "US",
			CacheTTLMinutes: 360,
			CacheSize:       4096,
		},
		Catalog: CatalogSettings{
			MaxPages:          500,
			MaxSessions:       2048,
			SessionTTLMinutes: 60,
			HomeRowSize:       10,
		},
		RateLimit: RateLimitSettings{Enabled: true, RequestsPerMinute: 240},
		Log: LogConfig{
			File:       filepath.Join("cache", "logs", "flikz.log"),
			Level:      "info",
			MaxSize:    50,
			MaxAge:     14,
			MaxBackups: 5,
			Compress:   true,
		},
	}
}

// Validate reports settings the server cannot start with.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Metadata.TMDBAPIKey) == "" && strings.TrimSpace(s.Metadata.TMDBToken) == "" {
		return errors.New("metadata: tmdb api key or token is required")
	}
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", s.Server.Port)
	}
	if len(strings.TrimSpace(s.Geo.DefaultCountry)) != 2 {
		return fmt.Errorf("geo: default country %q is not a two letter code", s.Geo.DefaultCountry)
	}
	return nil
}

// Manager handles loading and saving settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// Path returns the settings file location.
func (m *Manager) Path() string {
	return m.path
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing.
// Zero values in the file are filled from DefaultSettings.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return Settings{}, err
	}

	s := DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("decode %s: %w", m.path, err)
	}
	s.fillDefaults()
	return s, nil
}

func (s *Settings) fillDefaults() {
	d := DefaultSettings()
	if s.Server.Port == 0 {
		s.Server.Port = d.Server.Port
	}
	if strings.TrimSpace(s.Server.Brand) == "" {
		s.Server.Brand = d.Server.Brand
	}
	if strings.TrimSpace(s.Metadata.Language) == "" {
		s.Metadata.Language = d.Metadata.Language
	}
	if s.Metadata.CastLimit <= 0 {
		s.Metadata.CastLimit = d.Metadata.CastLimit
	}
	if s.Cache.MetadataTTLHours <= 0 {
		s.Cache.MetadataTTLHours = d.Cache.MetadataTTLHours
	}
	if strings.TrimSpace(s.Cache.Directory) == "" {
		s.Cache.Directory = d.Cache.Directory
	}
	if strings.TrimSpace(s.Geo.DefaultCountry) == "" {
		s.Geo.DefaultCountry = d.Geo.DefaultCountry
	}
	s.Geo.DefaultCountry = strings.ToUpper(strings.TrimSpace(s.Geo.DefaultCountry))
	if s.Catalog.MaxPages <= 0 {
		s.Catalog.MaxPages = d.Catalog.MaxPages
	}
	if s.Catalog.MaxSessions <= 0 {
		s.Catalog.MaxSessions = d.Catalog.MaxSessions
	}
	if s.Catalog.SessionTTLMinutes <= 0 {
		s.Catalog.SessionTTLMinutes = d.Catalog.SessionTTLMinutes
	}
	if s.Catalog.HomeRowSize <= 0 {
		s.Catalog.HomeRowSize = d.Catalog.HomeRowSize
	}
}

// Save writes settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
