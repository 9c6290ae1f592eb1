package util

import (
	"time"

	"github.com/rs/zerolog"
)

// Prepare zerolog
func SetupLogging(verbose bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
