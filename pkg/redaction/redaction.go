// Package redaction masks secrets and personal data before they reach logs.
package redaction

import (
	"regexp"
	"strings"
	"sync"
)

const Replacement = "[REDACTED]"

var (
	// Discord bot tokens: base64 user id, timestamp and HMAC joined by dots.
	discordToken = regexp.MustCompile(`[MNO][A-Za-z\d_-]{23,27}\.[A-Za-z\d_-]{6}\.[A-Za-z\d_-]{27,40}`)
	botHeader    = regexp.MustCompile(`(?i)\bBot\s+([A-Za-z\d_.-]{20,})`)
	keyValue     = regexp.MustCompile(`(?i)(token|secret|password)\s*[=:]\s*['"]?([^'"\s,}]{4,})['"]?`)
	email        = regexp.MustCompile(`([a-zA-Z0-9._%+-])[a-zA-Z0-9._%+-]*@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)

	sensitiveKeys = []string{"token", "secret", "password", "credential", "authorization"}

	mu      sync.RWMutex
	enabled = true
)

// SetEnabled toggles redaction globally.
func SetEnabled(on bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = on
}

func isEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Redact masks tokens, secrets and email local parts in s.
func Redact(s string) string {
	if !isEnabled() || s == "" {
		return s
	}

	s = discordToken.ReplaceAllString(s, Replacement)
	s = botHeader.ReplaceAllString(s, "Bot "+Replacement)
	s = keyValue.ReplaceAllString(s, "$1="+Replacement)
	s = email.ReplaceAllString(s, "$1***@$2")
	return s
}

// RedactFields returns a copy of fields with sensitive keys replaced and
// string values redacted. A nil map stays nil.
func RedactFields(fields map[string]any) map[string]any {
	if fields == nil || !isEnabled() {
		return fields
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if isSensitiveKey(k) {
			out[k] = Replacement
			continue
		}
		switch val := v.(type) {
		case string:
			out[k] = Redact(val)
		case map[string]any:
			out[k] = RedactFields(val)
		default:
			out[k] = v
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, sk := range sensitiveKeys {
		if strings.Contains(key, sk) {
			return true
		}
	}
	return false
}
