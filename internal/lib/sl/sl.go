package sl

import (
	"log/slog"
	"strings"
)

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func Module(mod string) slog.Attr {
	return slog.String("module", mod)
}

// Secret logs only the first and the last characters of a sensitive value.
func Secret(key, value string) slog.Attr {
	if len(value) < 3 {
		return slog.String(key, strings.Repeat("*", len(value)))
	}
	masked := value[:1] + strings.Repeat("*", len(value)-2) + value[len(value)-1:]
	return slog.String(key, masked)
}
