package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// MaskValue returns the canonical redacted placeholder for non-empty values. Empty values
// are returned unchanged to avoid introducing noise in logs.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// Endpoint returns an attr carrying only the scheme and host of raw. Node
// providers embed API keys in paths, queries and userinfo.
func Endpoint(key, raw string) slog.Attr {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return slog.String(key, MaskValue(raw))
	}
	masked := parsed.Scheme + "://" + parsed.Host
	if parsed.User != nil || (parsed.Path != "" && parsed.Path != "/") || parsed.RawQuery != "" {
		masked += "/" + RedactedValue
	}
	return slog.String(key, masked)
}
