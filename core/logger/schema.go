package logger

import "strings"

// levelNames maps accepted spellings onto the level printed in logs.
var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
	"fatal":   "FATAL",
}

// enumFields lists the closed vocabularies of a few keys. Unknown values of a
// strict field are dropped; status keeps them lowercased.
var enumFields = map[string]struct {
	values map[string]bool
	strict bool
}{
	"status": {values: set("ok", "fail", "skip", "retry", "rate_limited", "cancelled")},
	"cache":  {values: set("hit", "miss", "refresh"), strict: true},
	"outcome": {
		values: set("ok", "fail", "skip", "empty", "timeout", "cancelled", "rate_limited"),
		strict: true,
	},
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if name, ok := levelNames[strings.ToLower(level)]; ok {
		return name
	}
	return strings.ToUpper(level)
}

// normalizeEnum lowercases an enumerated value and reports whether to keep it.
func normalizeEnum(key, value string) (string, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	e, ok := enumFields[key]
	if !ok || value == "" {
		return value, value != ""
	}
	return value, e.values[value] || !e.strict
}

// defaultKeyOrder puts identity first, then the request, then the payload.
// Keys not listed follow in alphabetical order.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "kind",
	"handler", "flow", "state", "op", "action", "endpoint", "cb_key", "cb_payload",
	"outcome", "duration_ms", "messages", "kb",
	"query", "count", "movies", "page", "pages", "cache",
	"mode", "listen", "public_url", "db", "host", "port",
	"err", "err_code", "error", "error_kind", "cause",
	"attempt", "attempts", "delay_ms", "wait_ms",
}
