// Package security provides shared security validation functions.
package security

import (
	"fmt"
	"net/url"
)

// ValidateBaseURL checks that rawURL can serve as the users API base URL:
// an absolute http or https URL with a host and nothing the request path is
// appended to would mangle. Credentials are rejected since the URL is logged.
func ValidateBaseURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return fmt.Errorf("URL must have a host")
	}
	if parsed.User != nil {
		return fmt.Errorf("URL must not carry credentials")
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return fmt.Errorf("URL must not have a query or fragment")
	}
	return nil
}
