package main

import "github.com/rs/zerolog"

// zlog adapts zerolog to the key/value Logger used by the shared packages.
type zlog struct {
	logger zerolog.Logger
}

func newZlog(logger *zerolog.Logger, component string) zlog {
	return zlog{logger: logger.With().Str("component", component).Logger()}
}

func (l zlog) Info(msg string, fields ...interface{}) {
	l.logger.Info().Fields(fields).Msg(msg)
}

func (l zlog) Error(msg string, fields ...interface{}) {
	l.logger.Error().Fields(fields).Msg(msg)
}

func (l zlog) Debug(msg string, fields ...interface{}) {
	l.logger.Debug().Fields(fields).Msg(msg)
}
