package dispatch

import (
	"os"

	"github.com/rs/zerolog"
)

// Option configures a Frontend, following the same functional-options shape
// the teacher's server.Option used (server/options.go), upgraded per
// SPEC_FULL.md §3 to configure a zerolog.Logger instead of a stdlib one.
type Option func(*options)

type options struct {
	logger zerolog.Logger
}

func defaultOptions() *options {
	return &options{
		logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
}

// WithLogger overrides the Frontend's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}
