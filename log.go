package delia

import (
	"io"
	"log/slog"
)

// discardLogger backs a nil Options.Logger so the engine never touches
// process-global logging state and tests can capture or silence output by
// injecting their own logger.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
