// Package slogx holds shared slog attribute constructors.
package slogx

import "log/slog"

// Error renders err under the conventional "error" key.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}
