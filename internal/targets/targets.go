// Package targets validates and normalizes scan target URLs.
package targets

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/hakim/cybershield/internal/models"
)

// targetPattern accepts an optional http(s) scheme, one or more DNS labels,
// an alphabetic top-level label of two or more letters and an optional path.
var targetPattern = regexp.MustCompile(
	`^(https?://)?` +
		`([a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?\.)+` +
		`[a-zA-Z]{2,}` +
		`(/[^/\s]*)*$`,
)

// DefaultScheme is prepended to targets submitted without one.
const DefaultScheme = "https"

// Validate reports whether raw is an acceptable scan target.
func Validate(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: target is required", models.ErrInvalidTarget)
	}
	if !targetPattern.MatchString(raw) {
		return fmt.Errorf("%w: %q is not a valid URL (example: https://example.uz)", models.ErrInvalidTarget, raw)
	}
	return nil
}

// URL returns raw with DefaultScheme applied when no scheme is present.
func URL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return DefaultScheme + "://" + raw
}

// Host returns the lower-cased host name of a target.
func Host(raw string) string {
	u, err := url.Parse(URL(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
