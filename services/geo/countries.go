package geo

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// countryLanguages maps the countries with a dedicated UI language.
var countryLanguages = map[string]string{
	"IL": "he",
	"US": "en-US",
	"GB": "en-GB",
	"FR": "fr",
	"RU": "ru",
}

const fallbackLanguage = "en-US"

// NormalizeCountry validates an ISO 3166-1 alpha-2 code and returns it upper-cased.
func NormalizeCountry(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCountry, code)
	}
	region, err := language.ParseRegion(code)
	if err != nil || !region.IsCountry() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCountry, code)
	}
	return region.String(), nil
}

// CountryName returns the English name for code, or code itself when unknown.
func CountryName(code string) string {
	normalized, err := NormalizeCountry(code)
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	region := language.MustParseRegion(normalized)
	if name := display.English.Regions().Name(region); name != "" {
		return name
	}
	return normalized
}

// LanguageForCountry picks the default UI language for a country.
func LanguageForCountry(code string) string {
	if lang, ok := countryLanguages[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return lang
	}
	return fallbackLanguage
}
