package oauth

import (
	"fmt"
	"net/http"
	"strings"
)

// BuildWWWAuthenticate renders a Bearer challenge header per RFC 6750 §3.
// realm is the issuer URL; errorCode and description are optional.
func BuildWWWAuthenticate(realm, errorCode, description string) string {
	parts := []string{fmt.Sprintf("Bearer realm=%q", realm)}
	if errorCode != "" {
		parts = append(parts, fmt.Sprintf("error=%q", errorCode))
	}
	if description != "" {
		parts = append(parts, fmt.Sprintf("error_description=%q", description))
	}
	return strings.Join(parts, ", ")
}

// Challenge writes a 401 with a Bearer challenge. The description stays
// generic so remote callers learn nothing about token internals.
func Challenge(w http.ResponseWriter, realm, errorCode, description string) {
	w.Header().Set("WWW-Authenticate", BuildWWWAuthenticate(realm, errorCode, description))
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// BearerFromHeader extracts the token from an Authorization header.
// Returns an empty string when the header is absent or not Bearer.
func BearerFromHeader(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
