package leaders

import (
	"regexp"

	apierrors "github.com/olgasafonova/country-leaders-scraper/internal/errors"
)

var countryCodeRegex = regexp.MustCompile(`^[a-z]{2,3}$`)

// ValidateCountry validates a normalized country code.
// The API keys countries by two-letter codes; three letters are tolerated.
func ValidateCountry(c CountryCode) error {
	if c == "" {
		return apierrors.NewValidationError("country", "", "country code is required")
	}
	if !countryCodeRegex.MatchString(string(c)) {
		return apierrors.NewValidationError("country", string(c), "must be 2 or 3 letters")
	}
	return nil
}
