package graphstore

import (
	"github.com/hupe1980/graphstore/record"
)

type options struct {
	compression record.Compression
	logger      *Logger
}

// Option configures store construction.
type Option func(*options)

// WithCompression selects the block compression for overflow payloads.
func WithCompression(c record.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}
