package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// ZerologAdapter routes watermill's internal logging through zerolog
type ZerologAdapter struct {
	log zerolog.Logger
}

// NewZerologAdapter wraps log for use by watermill components
func NewZerologAdapter(log zerolog.Logger) watermill.LoggerAdapter {
	return ZerologAdapter{log: log.With().Str("component", "watermill").Logger()}
}

func (a ZerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Error().Err(err).Fields(map[string]interface{}(fields)).Msg(msg)
}

func (a ZerologAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Info().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (a ZerologAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (a ZerologAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.Trace().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (a ZerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return ZerologAdapter{log: a.log.With().Fields(map[string]interface{}(fields)).Logger()}
}
