package preferences

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"flikz/models"
	"flikz/services/geo"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
)

var (
	ErrInvalidLanguage = errors.New("preferences: invalid language tag")
	ErrInvalidCountry  = errors.New("preferences: invalid country code")
	ErrInvalidClient   = errors.New("preferences: invalid client id")
)

// defaultLanguageOptions are always offered by the language selector.
var defaultLanguageOptions = []models.Language{
	{ISO6391: "en-US", EnglishName: "English", Name: "English"},
	{ISO6391: "he-IL", EnglishName: "Hebrew", Name: "עברית"},
	{ISO6391: "fr-FR", EnglishName: "French", Name: "Français"},
}

type Service struct {
	store    *Store
	validate *validator.Validate
}

func NewService(store *Store) *Service {
	return &Service{store: store, validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (s *Service) checkClient(clientID string) error {
	if err := s.validate.Var(clientID, "required,uuid"); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidClient, clientID)
	}
	return nil
}

// Get returns the saved preferences for clientID or ErrNotFound.
func (s *Service) Get(ctx context.Context, clientID string) (models.ClientPreferences, error) {
	if err := s.checkClient(clientID); err != nil {
		return models.ClientPreferences{}, err
	}
	return s.store.Get(ctx, clientID)
}

// Resolve merges saved choices with the detected location. A saved language wins;
// otherwise the language follows the country and is flagged as auto-detected.
// A saved country override wins over detection.
func (s *Service) Resolve(ctx context.Context, clientID string, detected geo.Location) (models.ResolvedPreferences, error) {
	resolved := models.ResolvedPreferences{
		ClientID:      clientID,
		Country:       detected.Country,
		CountrySource: detected.Source,
	}

	saved, err := s.Get(ctx, clientID)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidClient):
	case err != nil:
		return models.ResolvedPreferences{}, err
	default:
		if saved.Country != "" {
			resolved.Country = saved.Country
			resolved.CountrySource = "override"
		}
		if saved.Language != "" {
			resolved.Language = saved.Language
			resolved.LanguageAutoDetected = saved.LanguageAutoDetected
		}
	}

	if resolved.Country == "" {
		resolved.Country = "US"
		resolved.CountrySource = geo.SourceDefault
	}
	resolved.CountryName = geo.CountryName(resolved.Country)
	if resolved.Language == "" {
		resolved.Language = geo.LanguageForCountry(resolved.Country)
		resolved.LanguageAutoDetected = true
	}
	return resolved, nil
}

// NormalizeLanguage canonicalizes a BCP 47 tag such as "he_il" to "he-IL".
func (s *Service) NormalizeLanguage(tag string) (string, error) {
	tag = strings.ReplaceAll(strings.TrimSpace(tag), "_", "-")
	if err := s.validate.Var(tag, "required,bcp47_language_tag"); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, tag)
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, tag)
	}
	base, confidence := parsed.Base()
	if confidence == language.No || base.String() == "und" {
		return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, tag)
	}
	return parsed.String(), nil
}

// SetLanguage stores an explicit language choice, clearing the auto-detected flag.
func (s *Service) SetLanguage(ctx context.Context, clientID, tag string) (string, error) {
	if err := s.checkClient(clientID); err != nil {
		return "", err
	}
	lang, err := s.NormalizeLanguage(tag)
	if err != nil {
		return "", err
	}
	if err := s.store.upsertLanguage(ctx, clientID, lang, false); err != nil {
		return "", err
	}
	return lang, nil
}

// SetCountry stores a country override; an empty code clears it.
func (s *Service) SetCountry(ctx context.Context, clientID, code string) (string, error) {
	if err := s.checkClient(clientID); err != nil {
		return "", err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code != "" {
		if err := s.validate.Var(code, "iso3166_1_alpha2"); err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidCountry, code)
		}
	}
	if err := s.store.upsertCountry(ctx, clientID, code); err != nil {
		return "", err
	}
	return code, nil
}

// LanguageOptions returns the selector entries: the built-in options first, then
// extra languages not already covered by a built-in base language.
func LanguageOptions(extra []models.Language) []models.Language {
	out := make([]models.Language, 0, len(defaultLanguageOptions)+len(extra))
	out = append(out, defaultLanguageOptions...)
	seen := make(map[string]struct{}, len(out))
	for _, opt := range defaultLanguageOptions {
		seen[strings.SplitN(opt.ISO6391, "-", 2)[0]] = struct{}{}
	}
	for _, lang := range extra {
		code := strings.ToLower(strings.TrimSpace(lang.ISO6391))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, lang)
	}
	return out
}
