package wikipedia

import (
	"net/url"
	"strings"

	apierrors "github.com/olgasafonova/country-leaders-scraper/internal/errors"
)

// ValidatePageURL parses an article URL and requires an http(s) scheme and a host.
func ValidatePageURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apierrors.NewValidationError("url", "", "wikipedia URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, apierrors.NewValidationError("url", raw, "not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apierrors.NewValidationError("url", raw, "must be http or https")
	}
	if u.Host == "" {
		return nil, apierrors.NewValidationError("url", raw, "missing host")
	}
	return u, nil
}
