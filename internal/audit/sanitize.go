package audit

import (
	"encoding/json"
	"regexp"
	"strings"
)

// RedactionMarker replaces any value whose key looks secret-like. It is a
// stable fixed point: sanitizing already-sanitized data changes nothing.
const RedactionMarker = "[REDACTED]"

// secretKeyPatterns is the fixed list of substrings that mark a key as
// secret-like. Matching is case-insensitive after stripping separators, so
// api_key, apiKey and API-KEY all match.
var secretKeyPatterns = []string{
	"token",
	"key",
	"secret",
	"password",
	"credential",
	"authorization",
	"apikey",
	"accesstoken",
	"refreshtoken",
}

var keySeparators = strings.NewReplacer("_", "", "-", "", " ", "")

// isSecretKey reports whether an object key matches a secret-like pattern.
func isSecretKey(key string) bool {
	normalized := strings.ToLower(keySeparators.Replace(key))
	for _, p := range secretKeyPatterns {
		if strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}

// SanitizeValue walks a decoded JSON value and replaces the value of every
// secret-like key with the redaction marker, regardless of its type. All
// other structure is preserved: arrays stay arrays, nested objects stay
// nested, so the record remains useful for debugging shapes.
func SanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if isSecretKey(k) {
				out[k] = RedactionMarker
				continue
			}
			out[k] = SanitizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = SanitizeValue(inner)
		}
		return out
	default:
		return v
	}
}

// SanitizeJSON sanitizes a JSON document and re-encodes it. Input that is not
// valid JSON is returned as a redaction-safe quoted string rather than
// failing the audit write.
func SanitizeJSON(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		safe, _ := json.Marshal(SanitizeText(raw))
		return string(safe)
	}

	sanitized, err := json.Marshal(SanitizeValue(decoded))
	if err != nil {
		return `"` + RedactionMarker + `"`
	}
	return string(sanitized)
}

// secretAssignmentPattern matches key=value / key: value / "key":"value"
// fragments inside free text, for error strings that embed secrets.
var secretAssignmentPattern = regexp.MustCompile(
	`(?i)\b(api[_-]?key|access[_-]?token|refresh[_-]?token|token|secret|password|credential|authorization|key)\b(["']?\s*[:=]\s*["']?)[^\s"',;}]+`,
)

// SanitizeText redacts secret-looking assignments inside free text. Applied
// to error strings before they are persisted. Idempotent: the replacement
// value matches the pattern and re-replaces with itself.
func SanitizeText(s string) string {
	return secretAssignmentPattern.ReplaceAllString(s, "${1}${2}"+RedactionMarker)
}
