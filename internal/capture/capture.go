// Package capture runs the candidate's side of a turn: it drives a
// remote speech recognizer, assembles the answer transcript and keeps
// the silence watchdog honest.
package capture

import "time"

// EventType discriminates recognizer events.
type EventType int

const (
	EventResult EventType = iota
	EventError
	EventEnd
)

// Event is a single recognizer notification. Result events carry a
// transcript segment, error events carry a recognizer error code, and
// end events mark the end of one recognition run.
type Event struct {
	Type  EventType
	Text  string
	Final bool
	Code  string
}

// Recognizer is a remote speech recognizer controlled by the session.
// Start begins one recognition run; every run eventually produces an
// end event. Events returns the notification stream; the channel is
// closed when the underlying transport goes away.
type Recognizer interface {
	Start() error
	Stop()
	Events() <-chan Event
}

// EndReason says why a capture session finished.
type EndReason string

const (
	// EndedByStop means Stop was requested and the transcript is final.
	EndedByStop EndReason = "stopped"
	// EndedBySelf means the recognizer finished on its own with speech collected.
	EndedBySelf EndReason = "ended"
	// EndedByError means an unrecoverable recognizer error ended the session.
	EndedByError EndReason = "error"
)

// Hooks are the session's outbound callbacks. Any hook may be nil;
// none may block.
type Hooks struct {
	OnSpeech          func(transcript string, final bool)
	OnNoSpeechWarning func()
	OnRepeatTimeout   func()
	OnEnded           func(transcript string, reason EndReason)
}

// Config holds the capture timing thresholds in one place so tests can
// shrink them.
type Config struct {
	// NoSpeechWarning is how long to wait for the first speech before
	// surfacing a warning.
	NoSpeechWarning time.Duration
	// RepeatTimeout is how long to wait for the first speech before
	// requesting that the current question be repeated.
	RepeatTimeout time.Duration
	// PostSpeechPause is the silence window after a final segment that
	// finalizes the answer.
	PostSpeechPause time.Duration
	// RestartDelay is the pause before the recognizer restarts after a
	// recoverable error.
	RestartDelay time.Duration
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		NoSpeechWarning: 25 * time.Second,
		RepeatTimeout:   30 * time.Second,
		PostSpeechPause: 1500 * time.Millisecond,
		RestartDelay:    500 * time.Millisecond,
	}
}
