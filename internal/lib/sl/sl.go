// Package sl holds small slog attribute helpers shared across the service.
package sl

import (
	"log/slog"
)

// Err wraps an error as a slog attribute.
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Module tags a logger with the component it belongs to.
func Module(name string) slog.Attr {
	return slog.Attr{
		Key:   "module",
		Value: slog.StringValue(name),
	}
}

// Secret logs a value without revealing more than its tail, enough to
// correlate records without leaking the credential.
func Secret(key, value string) slog.Attr {
	masked := "****"
	if n := len(value); n > 4 {
		masked = "****" + value[n-4:]
	}
	return slog.Attr{
		Key:   key,
		Value: slog.StringValue(masked),
	}
}
