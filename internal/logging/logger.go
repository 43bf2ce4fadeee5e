package logging

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// New constructs the process-wide logger. Level accepts hclog level names;
// unknown values fall back to warn so a typo never silences errors.
func New(level string) hclog.Logger {
	parsed := hclog.LevelFromString(level)
	if parsed == hclog.NoLevel {
		parsed = hclog.Warn
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "plugsmith",
		Level:  parsed,
		Output: os.Stderr,
	})
}
