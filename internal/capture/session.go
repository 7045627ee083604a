package capture

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// Session owns one microphone capture lifecycle at a time. Start opens
// a listening window; the window ends through Stop, through the
// recognizer itself, or silently through Abort. Start may be called
// again after the previous window ended.
type Session struct {
	rec Recognizer
	cfg Config
	acc *Accumulator
	wd  *Watchdog

	mu       sync.Mutex
	active   bool
	stopping bool
	lastErr  string
	hooks    Hooks
	restart  *time.Timer
	pumpOnce sync.Once
}

func NewSession(rec Recognizer, cfg Config) *Session {
	return &Session{rec: rec, cfg: cfg, acc: NewAccumulator(), wd: NewWatchdog(cfg)}
}

// Start opens a new listening window. It fails when a window is already
// live or the recognizer refuses to start.
func (s *Session) Start(h Hooks) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return fmt.Errorf("capture already active")
	}
	s.acc.Reset()
	s.hooks = h
	s.active = true
	s.stopping = false
	s.lastErr = ""
	s.mu.Unlock()

	if err := s.rec.Start(); err != nil {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		return fmt.Errorf("start recognizer: %w", err)
	}
	s.pumpOnce.Do(func() { go s.pump() })
	s.wd.Arm(s.warningFired, s.repeatFired, s.pauseFired)
	return nil
}

// Stop finalizes the window gracefully; OnEnded fires with the
// transcript snapshot.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.active || s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	idle := s.restart != nil && s.restart.Stop()
	s.mu.Unlock()
	if idle {
		// the recognizer was waiting out a restart delay, no end event will come
		s.finish(s.acc.Snapshot(), EndedByStop)
		return
	}
	s.rec.Stop()
}

// Abort tears the window down without surfacing any hook.
func (s *Session) Abort() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	if s.restart != nil {
		s.restart.Stop()
	}
	s.wd.Cancel()
	s.mu.Unlock()
	s.rec.Stop()
}

// Snapshot returns the best transcript collected so far. It stays
// readable after the window ends, until the next Start resets it.
func (s *Session) Snapshot() string { return s.acc.Snapshot() }

func (s *Session) pump() {
	for ev := range s.rec.Events() {
		switch ev.Type {
		case EventResult:
			s.handleResult(ev)
		case EventError:
			s.handleError(ev)
		case EventEnd:
			s.handleEnd()
		}
	}
}

func (s *Session) handleResult(ev Event) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.acc.Add(ev.Text, ev.Final)
	s.wd.NoteSpeech()
	if ev.Final {
		s.wd.NoteFinal()
	}
	snap := s.acc.Snapshot()
	h := s.hooks
	s.mu.Unlock()
	if h.OnSpeech != nil {
		h.OnSpeech(snap, ev.Final)
	}
}

func (s *Session) handleError(ev Event) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.lastErr = ev.Code
	s.mu.Unlock()
	log.Printf("[capture] recognizer error: %s", ev.Code)
}

func (s *Session) handleEnd() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	snap := s.acc.Snapshot()
	code := s.lastErr
	s.lastErr = ""
	stopping := s.stopping
	if !stopping && strings.TrimSpace(snap) == "" && (code == "" || recoverable(code)) {
		s.scheduleRestartLocked()
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	switch {
	case stopping:
		s.finish(snap, EndedByStop)
	case strings.TrimSpace(snap) != "":
		s.finish(snap, EndedBySelf)
	default:
		s.finish("", EndedByError)
	}
}

func (s *Session) scheduleRestartLocked() {
	if s.restart != nil {
		s.restart.Stop()
	}
	s.restart = time.AfterFunc(s.cfg.RestartDelay, s.runRestart)
}

func (s *Session) runRestart() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	if s.stopping {
		s.mu.Unlock()
		s.finish(s.acc.Snapshot(), EndedByStop)
		return
	}
	s.mu.Unlock()
	if err := s.rec.Start(); err != nil {
		log.Printf("[capture] recognizer restart: %v", err)
		s.finish("", EndedByError)
		return
	}
	s.mu.Lock()
	stopRequested := s.active && s.stopping
	s.mu.Unlock()
	if stopRequested {
		s.rec.Stop()
	}
}

// finish closes the window and delivers OnEnded exactly once.
func (s *Session) finish(transcript string, reason EndReason) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.wd.Cancel()
	h := s.hooks
	s.mu.Unlock()
	if h.OnEnded != nil {
		h.OnEnded(transcript, reason)
	}
}

func (s *Session) warningFired() {
	s.mu.Lock()
	h := s.hooks
	ok := s.active && !s.stopping
	s.mu.Unlock()
	if ok && h.OnNoSpeechWarning != nil {
		h.OnNoSpeechWarning()
	}
}

func (s *Session) repeatFired() {
	s.mu.Lock()
	h := s.hooks
	ok := s.active && !s.stopping
	s.mu.Unlock()
	if ok && h.OnRepeatTimeout != nil {
		h.OnRepeatTimeout()
	}
}

func (s *Session) pauseFired() { s.Stop() }

// recoverable reports whether an error code allows a quiet recognizer
// restart instead of ending the window.
func recoverable(code string) bool {
	switch code {
	case "no-speech", "audio-capture", "aborted":
		return true
	}
	return false
}
