package capture

import (
	"sync"
	"time"
)

// Watchdog owns the three listening timers: the no-speech warning, the
// no-speech repeat request and the post-speech pause. Warning and
// repeat are armed once per listening window and cancelled by the first
// speech; the pause timer re-arms on every final segment.
type Watchdog struct {
	warning time.Duration
	repeat  time.Duration
	pause   time.Duration

	mu         sync.Mutex
	armed      bool
	repeatDone bool
	warnT      *time.Timer
	repeatT    *time.Timer
	pauseT     *time.Timer
	onWarning  func()
	onRepeat   func()
	onPause    func()
}

func NewWatchdog(cfg Config) *Watchdog {
	return &Watchdog{
		warning: cfg.NoSpeechWarning,
		repeat:  cfg.RepeatTimeout,
		pause:   cfg.PostSpeechPause,
	}
}

// Arm starts a fresh listening window. Timers from a previous window
// are dropped.
func (w *Watchdog) Arm(onWarning, onRepeat, onPause func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelLocked()
	w.armed = true
	w.repeatDone = false
	w.onWarning = onWarning
	w.onRepeat = onRepeat
	w.onPause = onPause
	w.warnT = time.AfterFunc(w.warning, w.fireWarning)
	w.repeatT = time.AfterFunc(w.repeat, w.fireRepeat)
}

// NoteSpeech cancels the no-speech timers. Only the first call per
// window does anything.
func (w *Watchdog) NoteSpeech() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed {
		return
	}
	if w.warnT != nil {
		w.warnT.Stop()
	}
	if w.repeatT != nil {
		w.repeatT.Stop()
	}
}

// NoteFinal re-arms the post-speech pause timer.
func (w *Watchdog) NoteFinal() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed {
		return
	}
	if w.pauseT == nil {
		w.pauseT = time.AfterFunc(w.pause, w.firePause)
		return
	}
	w.pauseT.Stop()
	w.pauseT.Reset(w.pause)
}

// Cancel stops every timer. A timer that already fired but has not run
// its callback yet becomes a no-op.
func (w *Watchdog) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelLocked()
}

func (w *Watchdog) cancelLocked() {
	w.armed = false
	for _, t := range []*time.Timer{w.warnT, w.repeatT, w.pauseT} {
		if t != nil {
			t.Stop()
		}
	}
	w.warnT, w.repeatT, w.pauseT = nil, nil, nil
}

func (w *Watchdog) fireWarning() {
	w.mu.Lock()
	cb := w.onWarning
	ok := w.armed
	w.mu.Unlock()
	if ok && cb != nil {
		cb()
	}
}

func (w *Watchdog) fireRepeat() {
	w.mu.Lock()
	cb := w.onRepeat
	ok := w.armed && !w.repeatDone
	w.repeatDone = true
	w.mu.Unlock()
	if ok && cb != nil {
		cb()
	}
}

func (w *Watchdog) firePause() {
	w.mu.Lock()
	cb := w.onPause
	ok := w.armed
	w.mu.Unlock()
	if ok && cb != nil {
		cb()
	}
}
