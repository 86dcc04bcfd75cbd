// Package preferences persists per-client language and country choices in sqlite.
package preferences

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"flikz/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrNotFound = errors.New("preferences: client not found")

// Store is the sqlite-backed table of client preferences.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenStore opens (creating if needed) the database at path and applies pending migrations.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite allows one writer; a single connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, result := range results {
		log.Printf("[preferences] applied migration %s in %s", result.Source.Path, result.Duration)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get loads the saved row for clientID.
func (s *Store) Get(ctx context.Context, clientID string) (models.ClientPreferences, error) {
	var prefs models.ClientPreferences
	var autoDetected int
	err := s.db.QueryRowContext(ctx, `
		SELECT client_id, language, language_auto_detected, country, updated_at
		FROM client_preferences WHERE client_id = ?`, clientID,
	).Scan(&prefs.ClientID, &prefs.Language, &autoDetected, &prefs.Country, &prefs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ClientPreferences{}, ErrNotFound
	}
	if err != nil {
		return models.ClientPreferences{}, fmt.Errorf("load preferences: %w", err)
	}
	prefs.LanguageAutoDetected = autoDetected == 1
	return prefs, nil
}

func (s *Store) upsertLanguage(ctx context.Context, clientID, lang string, autoDetected bool) error {
	flag := 0
	if autoDetected {
		flag = 1
	}
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_preferences (client_id, language, language_auto_detected, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			language = excluded.language,
			language_auto_detected = excluded.language_auto_detected,
			updated_at = excluded.updated_at`,
		clientID, lang, flag, now, now)
	if err != nil {
		return fmt.Errorf("save language: %w", err)
	}
	return nil
}

func (s *Store) upsertCountry(ctx context.Context, clientID, country string) error {
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_preferences (client_id, country, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			country = excluded.country,
			updated_at = excluded.updated_at`,
		clientID, country, now, now)
	if err != nil {
		return fmt.Errorf("save country: %w", err)
	}
	return nil
}

// Prune deletes clients not updated since cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM client_preferences WHERE updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune preferences: %w", err)
	}
	return res.RowsAffected()
}
