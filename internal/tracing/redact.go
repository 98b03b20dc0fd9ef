package tracing

import (
	"encoding/json"
	"strings"
)

// RedactedSentinel replaces the value of any sensitive key.
const RedactedSentinel = "***REDACTED***"

// sensitiveKeys is the case-insensitive redaction key set.
var sensitiveKeys = map[string]struct{}{
	"api_key":       {},
	"token":         {},
	"authorization": {},
	"secret":        {},
	"password":      {},
	"apikey":        {},
	"bearer":        {},
	"x-api-key":     {},
	"webhook_secret": {},
}

func isSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// Redact walks raw JSON and replaces the value of any sensitive key with
// RedactedSentinel, returning the re-serialized result. It operates on
// the decoded value tree rather than on the serialized bytes, so key
// matching is unambiguous regardless of formatting or nesting.
//
// Redact is idempotent: redacting an already-redacted document is a
// no-op, since the sentinel string contains no sensitive keys itself.
func Redact(raw []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		// Not a JSON document — nothing we can walk; return as-is.
		return raw, nil
	}
	redacted := redactValue(v)
	return json.Marshal(redacted)
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isSensitiveKey(k) {
				out[k] = RedactedSentinel
				continue
			}
			out[k] = redactValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = redactValue(val)
		}
		return out
	default:
		return v
	}
}
