package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LoadEnvFile reads KEY=value lines from path into the process environment.
// Variables that are already set are left alone. A missing file is not an error.
func LoadEnvFile(path string) error {
	path = filepath.Clean(path)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ApplyEnv overlays environment variables on top of file settings.
func ApplyEnv(s *Settings) {
	if v := strings.TrimSpace(os.Getenv("TMDB_API_KEY")); v != "" {
		s.Metadata.TMDBAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("TMDB_TOKEN")); v != "" {
		s.Metadata.TMDBToken = v
	}
	if v := strings.TrimSpace(os.Getenv("FLIKZ_HOST")); v != "" {
		s.Server.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("FLIKZ_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			s.Server.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("IPINFO_TOKEN")); v != "" {
		s.Geo.IPInfoToken = v
	}
	if v := strings.TrimSpace(os.Getenv("FLIKZ_LOG_LEVEL")); v != "" {
		s.Log.Level = strings.ToLower(v)
	}
}
