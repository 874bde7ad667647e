package graph

import "github.com/rs/zerolog"

// Sink receives progress and warning notifications from a build.
type Sink interface {
	OnProgress(message string, scanNumber int)
	OnWarning(message string)
}

// NopSink discards all notifications.
type NopSink struct{}

func (NopSink) OnProgress(string, int) {}
func (NopSink) OnWarning(string)       {}

// LogSink forwards notifications to a zerolog logger.
type LogSink struct {
	Logger zerolog.Logger
}

// OnProgress logs progress at debug level.
func (s LogSink) OnProgress(message string, scanNumber int) {
	s.Logger.Debug().Int("scan", scanNumber).Msg(message)
}

// OnWarning logs a warning.
func (s LogSink) OnWarning(message string) {
	s.Logger.Warn().Msg(message)
}
