package logger

import "strings"

var allowedStatus = map[string]struct{}{
	"ok":        {},
	"fail":      {},
	"skip":      {},
	"retry":     {},
	"denied":    {},
	"cancelled": {},
}

func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "INFO"
	case "debug":
		return "DEBUG"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if _, ok := allowedStatus[status]; ok {
		return status
	}
	return status
}

// defaultKeyOrder pins the leading fields of every log line so lines stay
// comparable across components. Unlisted keys follow alphabetically.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"principal_id",
	"chat_id",
	"handler",
	"command",
	"state_index",
	"action",
	"role",
	"reason",
	"idle_ms",
	"count",
	"remaining",
	"recipients",
	"outcome",
	"duration_ms",
	"mode",
	"listen",
	"public_url",
	"db",
	"host",
	"port",
	"payload",
	"err",
	"err_code",
	"cause",
	"attempts",
	"stack",
}
