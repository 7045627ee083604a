// Package playback plays synthesized interviewer lines through the
// connected client, absorbing audio failures so the interview never
// stalls on them.
package playback

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ejanovitz/Rehearse/internal/tts"
)

// Player delivers one clip to the client and blocks until playback
// ended, failed or the context was cancelled. Implementations must
// release any transient audio handle on every exit path.
type Player interface {
	Play(ctx context.Context, clip *tts.Clip) error
}

const synthesisTimeout = 20 * time.Second

// Session serializes clip playback. Play never reports an error to the
// caller: a line that cannot be fetched or played is logged and skipped
// so the turn flow continues.
type Session struct {
	synth  tts.Synthesizer
	player Player

	mu      sync.Mutex
	playing bool
	muted   bool
	closed  bool
	cancel  context.CancelFunc
}

func NewSession(synth tts.Synthesizer, player Player) *Session {
	return &Session{synth: synth, player: player}
}

// Play synthesizes text and plays it to completion. Muted and closed
// sessions resolve immediately.
func (s *Session) Play(ctx context.Context, text string) {
	s.mu.Lock()
	if s.closed || s.muted {
		s.mu.Unlock()
		return
	}
	if s.playing {
		s.mu.Unlock()
		log.Printf("[playback] play requested while busy, dropped")
		return
	}
	s.mu.Unlock()

	synthCtx, cancelSynth := context.WithTimeout(ctx, synthesisTimeout)
	clip, err := s.synth.Synthesize(synthCtx, text)
	cancelSynth()
	if err != nil {
		log.Printf("[playback] synthesis failed: %v", err)
		return
	}

	playCtx, cancelPlay := context.WithCancel(ctx)
	s.mu.Lock()
	if s.closed || s.muted {
		s.mu.Unlock()
		cancelPlay()
		return
	}
	s.playing = true
	s.cancel = cancelPlay
	s.mu.Unlock()

	err = s.player.Play(playCtx, clip)

	s.mu.Lock()
	s.playing = false
	s.cancel = nil
	s.mu.Unlock()
	cancelPlay()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[playback] playback failed: %v", err)
	}
}

// Playing reports whether a clip is being played right now, not merely
// fetched.
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// SetMuted silences future playback. A clip already playing is governed
// by the client's own mute handling.
func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

// Stop preempts the current clip.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close stops the current clip and rejects all future playback.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
