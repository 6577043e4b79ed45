package logger

import (
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	// Mask domain labels but keep the TLD
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// SanitizeQueryString reports whether a raw query string contains sensitive
// parameters and should be redacted wholesale from request logs.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}

	sensitiveParams := []string{
		"password",
		"code",
		"token",
		"secret",
		"state",
		"email",
		"redirect_to",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param+"=") {
			return true
		}
	}
	return false
}
