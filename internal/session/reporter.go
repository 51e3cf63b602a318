package session

import (
	"sync"

	"go.uber.org/zap"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Reporter receives the user-facing progress messages of a session. It is
// called from the poll goroutine and must be safe for concurrent use.
type Reporter interface {
	Report(level Level, message string)
}

type logReporter struct {
	log *zap.SugaredLogger
}

// NewLogReporter reports through the global zap logger.
func NewLogReporter() Reporter {
	return &logReporter{log: zap.S().Named("session")}
}

func (r *logReporter) Report(level Level, message string) {
	switch level {
	case LevelError:
		r.log.Error(message)
	case LevelWarning:
		r.log.Warn(message)
	default:
		r.log.Info(message)
	}
}

// Message is one reported line.
type Message struct {
	Level   Level
	Message string
}

// RecordingReporter keeps every message; handy for tests and for printing a
// summary once a command finishes.
type RecordingReporter struct {
	mu       sync.Mutex
	messages []Message
}

func (r *RecordingReporter) Report(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Message: message})
}

func (r *RecordingReporter) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Contains reports whether message was reported at level.
func (r *RecordingReporter) Contains(level Level, message string) bool {
	for _, m := range r.Messages() {
		if m.Level == level && m.Message == message {
			return true
		}
	}
	return false
}
