// Package util holds small helpers shared across the arena binaries.
package util

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds the process root logger at the requested level, tagged
// with the component name so multi-binary deployments stay distinguishable.
func NewLogger(component, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("component", component).Logger().Level(lvl)
}
