package logging

import "regexp"

// RedactedText replaces secrets in logged strings.
const RedactedText = "[REDACTED]"

// Provider URLs carry keys as query parameters (api_key=, apikey=).
var apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[^&\s"]+`)

// SanitizeURL strips credentials from a provider request URL before it is logged.
func SanitizeURL(raw string) string {
	return apiKeyPattern.ReplaceAllString(raw, "${1}="+RedactedText)
}

// SanitizeError returns the error text with credentials removed.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeURL(err.Error())
}
