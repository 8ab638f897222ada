package pipeline

import (
	"fmt"
	"strings"

	"github.com/hakim/cybershield/internal/models"
	"github.com/hakim/cybershield/internal/targets"
)

// ScopeConfig defines allowed scanning boundaries.
// An empty ScopeConfig (no rules) allows any target.
type ScopeConfig struct {
	// AllowedDomains is a list of domain patterns the target host must match.
	// Wildcard prefix ("*.example.com") matches any single-label subdomain.
	// Exact entry ("example.com") matches only that literal value.
	AllowedDomains []string
}

// ValidateTarget checks if a target URL's host is within scope.
// Returns nil if allowed, an error wrapping models.ErrInvalidTarget otherwise.
// If AllowedDomains is empty, everything is allowed.
func (s *ScopeConfig) ValidateTarget(target string) error {
	if s == nil || len(s.AllowedDomains) == 0 {
		return nil
	}
	host := targets.Host(target)
	for _, pattern := range s.AllowedDomains {
		if domainMatches(host, pattern) {
			return nil
		}
	}
	return fmt.Errorf("%w: host %q is outside allowed scope (domains: %s)",
		models.ErrInvalidTarget, host, strings.Join(s.AllowedDomains, ", "))
}

// domainMatches returns true when host satisfies the scope pattern.
//
//   - "*.example.com" matches "foo.example.com" but not "example.com" or
//     "foo.bar.example.com" (single wildcard label only).
//   - "example.com" matches only the exact string "example.com".
//   - Comparison is case-insensitive.
func domainMatches(host, pattern string) bool {
	host = strings.ToLower(host)
	pattern = strings.ToLower(strings.TrimSpace(pattern))

	if !strings.HasPrefix(pattern, "*.") {
		return host == pattern
	}

	suffix := pattern[2:]
	if !strings.HasSuffix(host, "."+suffix) {
		return false
	}

	// The part before the suffix must be a single label (no dots).
	label := host[:len(host)-len(suffix)-1]
	return len(label) > 0 && !strings.Contains(label, ".")
}
