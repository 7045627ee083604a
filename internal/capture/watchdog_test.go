package capture

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchdog_SilenceFiresWarningThenRepeat(t *testing.T) {
	wd := NewWatchdog(shortConfig())
	var warned, repeated atomic.Bool
	wd.Arm(func() { warned.Store(true) }, func() { repeated.Store(true) }, nil)
	defer wd.Cancel()

	waitFor(t, time.Second, func() bool { return warned.Load() })
	if repeated.Load() {
		t.Fatalf("repeat fired before its timeout")
	}
	waitFor(t, time.Second, func() bool { return repeated.Load() })
}

func TestWatchdog_SpeechCancelsSilenceTimers(t *testing.T) {
	wd := NewWatchdog(shortConfig())
	var warned, repeated atomic.Bool
	wd.Arm(func() { warned.Store(true) }, func() { repeated.Store(true) }, nil)
	defer wd.Cancel()

	wd.NoteSpeech()
	time.Sleep(150 * time.Millisecond)
	if warned.Load() || repeated.Load() {
		t.Fatalf("silence timers fired after speech: warned=%v repeated=%v", warned.Load(), repeated.Load())
	}
}

func TestWatchdog_FinalArmsPause(t *testing.T) {
	wd := NewWatchdog(shortConfig())
	var paused atomic.Bool
	wd.Arm(nil, nil, func() { paused.Store(true) })
	defer wd.Cancel()

	wd.NoteSpeech()
	wd.NoteFinal()
	waitFor(t, time.Second, func() bool { return paused.Load() })
}

func TestWatchdog_NewFinalPostponesPause(t *testing.T) {
	cfg := shortConfig()
	cfg.NoSpeechWarning = time.Second
	cfg.RepeatTimeout = 2 * time.Second
	cfg.PostSpeechPause = 100 * time.Millisecond
	wd := NewWatchdog(cfg)
	var fired atomic.Int32
	wd.Arm(nil, nil, func() { fired.Add(1) })
	defer wd.Cancel()

	wd.NoteFinal()
	time.Sleep(50 * time.Millisecond)
	wd.NoteFinal()
	// past the original deadline, before the postponed one
	time.Sleep(70 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Fatalf("pause fired %d times before the postponed deadline", n)
	}
	waitFor(t, time.Second, func() bool { return fired.Load() == 1 })
}

func TestWatchdog_CancelStopsEverything(t *testing.T) {
	wd := NewWatchdog(shortConfig())
	var fired atomic.Int32
	cb := func() { fired.Add(1) }
	wd.Arm(cb, cb, cb)
	wd.NoteFinal()
	wd.Cancel()

	time.Sleep(150 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Fatalf("timers fired %d times after cancel", n)
	}
}

func TestWatchdog_RearmResetsWindow(t *testing.T) {
	wd := NewWatchdog(shortConfig())
	var first, second atomic.Bool
	wd.Arm(func() { first.Store(true) }, nil, nil)
	wd.NoteSpeech()
	wd.Arm(func() { second.Store(true) }, nil, nil)
	defer wd.Cancel()

	waitFor(t, time.Second, func() bool { return second.Load() })
	if first.Load() {
		t.Fatalf("callback from the previous window fired")
	}
}
