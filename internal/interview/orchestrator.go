package interview

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ejanovitz/Rehearse/internal/capture"
	"github.com/ejanovitz/Rehearse/internal/metrics"
)

// Config wires an Orchestrator.
type Config struct {
	Session SessionContext
	Decider TurnDecider
	Capture AnswerCapture
	Voice   VoicePlayer
	Sink    RecordSink
	// Timings defaults to DefaultTimings when zero.
	Timings Timings
	// OnChange, when set, receives a snapshot after every state
	// mutation. It runs on the orchestrator goroutine and must not
	// block.
	OnChange func(Snapshot)
}

type eventKind int

const (
	evDoorOpened eventKind = iota
	evPlaybackDone
	evSpeech
	evNoSpeechWarning
	evRepeatTimeout
	evCaptureEnded
	evDecision
	evDoorClosed
	evStopAnswer
	evExit
	evSetMuted
)

type event struct {
	kind      eventKind
	epoch     int
	text      string
	final     bool
	endReason capture.EndReason
	decision  *TurnDecision
	err       error
	muted     bool
}

// Orchestrator is the single-writer interview state machine. All
// mutations happen on its run goroutine; asynchronous completions
// re-enter through the event mailbox and are dropped when their epoch
// is stale.
type Orchestrator struct {
	session  SessionContext
	decider  TurnDecider
	capture  AnswerCapture
	voice    VoicePlayer
	sink     RecordSink
	timings  Timings
	onChange func(Snapshot)

	events   chan event
	done     chan struct{}
	closed   chan struct{}
	doneOnce sync.Once

	mu              sync.Mutex
	started         bool
	state           State
	phase           Phase
	turns           []Turn
	counters        Counters
	currentAIText   string
	liveTranscript  string
	noSpeechWarning bool
	muted           bool
	exiting         bool
	completed       bool
	epoch           int
}

// New validates collaborators and returns an un-started orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Session.SessionID == "" {
		return nil, fmt.Errorf("interview: session id required")
	}
	if cfg.Decider == nil || cfg.Capture == nil || cfg.Voice == nil || cfg.Sink == nil {
		return nil, fmt.Errorf("interview: decider, capture, voice and sink are all required")
	}
	t := cfg.Timings
	if t == (Timings{}) {
		t = DefaultTimings()
	}
	return &Orchestrator{
		session:  cfg.Session,
		decider:  cfg.Decider,
		capture:  cfg.Capture,
		voice:    cfg.Voice,
		sink:     cfg.Sink,
		timings:  t,
		onChange: cfg.OnChange,
		events:   make(chan event, 64),
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
		state:    StateDoorOpening,
		phase:    PhaseGreeting,
	}, nil
}

// Start opens the door and begins the interview. Cancelling ctx is
// treated as an exit request.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("interview already started")
	}
	o.started = true
	ep := o.epoch
	o.mu.Unlock()

	metrics.InterviewsStarted.Inc()
	o.emitChange()
	go o.run(ctx)
	time.AfterFunc(o.timings.DoorOpen, func() {
		o.post(event{kind: evDoorOpened, epoch: ep})
	})
	return nil
}

// Done closes when the interview is over and the client should move on
// to the report.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// RequestExit asks for an immediate, permanent teardown.
func (o *Orchestrator) RequestExit() { o.post(event{kind: evExit}) }

// StopAnswer finalizes the current answer early. Ignored unless the
// interview is listening and some transcript exists.
func (o *Orchestrator) StopAnswer() { o.post(event{kind: evStopAnswer}) }

// SetMuted toggles interviewer audio without touching the flow.
func (o *Orchestrator) SetMuted(muted bool) { o.post(event{kind: evSetMuted, muted: muted}) }

// Snapshot returns a consistent view of the interview.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		State:           o.state,
		Phase:           o.phase,
		CurrentAIText:   o.currentAIText,
		LiveTranscript:  o.liveTranscript,
		NoSpeechWarning: o.noSpeechWarning,
		Counters:        o.counters,
		TurnCount:       len(o.turns),
		Muted:           o.muted,
	}
}

// Turns returns a copy of the history so far.
func (o *Orchestrator) Turns() []Turn {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Turn, len(o.turns))
	copy(out, o.turns)
	return out
}

// post delivers an event to the run loop, or drops it once the loop has
// exited.
func (o *Orchestrator) post(e event) {
	select {
	case o.events <- e:
	case <-o.closed:
	}
}

func (o *Orchestrator) run(ctx context.Context) {
	defer close(o.closed)
	for {
		select {
		case <-ctx.Done():
			o.exit()
			return
		case ev := <-o.events:
			if o.handle(ctx, ev) {
				return
			}
		}
	}
}

// handle processes one event; returning true ends the run loop.
func (o *Orchestrator) handle(ctx context.Context, ev event) bool {
	switch ev.kind {
	case evExit:
		o.exit()
		return true
	case evSetMuted:
		o.mu.Lock()
		o.muted = ev.muted
		o.mu.Unlock()
		o.voice.SetMuted(ev.muted)
		o.emitChange()
	case evDoorOpened:
		o.doorOpened(ctx, ev)
	case evPlaybackDone:
		o.playbackDone(ev)
	case evSpeech:
		o.speech(ev)
	case evNoSpeechWarning:
		o.noSpeechWarned(ev)
	case evRepeatTimeout:
		o.repeatTimeout(ctx, ev)
	case evCaptureEnded:
		o.captureEnded(ctx, ev)
	case evDecision:
		o.decided(ctx, ev)
	case evDoorClosed:
		if !o.stale(ev.epoch) {
			o.signalDone()
			return true
		}
	case evStopAnswer:
		o.stopAnswer()
	}
	return false
}

// stale reports whether an epoch-stamped completion belongs to an
// activity that has since been superseded.
func (o *Orchestrator) stale(epoch int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return epoch != o.epoch || o.exiting
}

func (o *Orchestrator) emitChange() {
	if o.onChange != nil {
		o.onChange(o.Snapshot())
	}
}

func (o *Orchestrator) signalDone() {
	o.doneOnce.Do(func() { close(o.done) })
}

// speakAs plays text with the interview in the given state, bumping the
// epoch so stragglers from the previous activity are ignored.
func (o *Orchestrator) speakAs(ctx context.Context, st State, text string) {
	o.mu.Lock()
	if o.exiting {
		o.mu.Unlock()
		return
	}
	o.state = st
	o.liveTranscript = ""
	o.noSpeechWarning = false
	o.epoch++
	ep := o.epoch
	o.mu.Unlock()
	o.emitChange()
	go func() {
		o.voice.Play(ctx, text)
		o.post(event{kind: evPlaybackDone, epoch: ep})
	}()
}

func (o *Orchestrator) doorOpened(ctx context.Context, ev event) {
	if o.stale(ev.epoch) {
		return
	}
	o.mu.Lock()
	if o.state != StateDoorOpening {
		o.mu.Unlock()
		return
	}
	o.currentAIText = o.session.Greeting
	o.turns = append(o.turns, Turn{Kind: TurnAI, AIText: o.session.Greeting})
	o.mu.Unlock()
	metrics.TurnsTotal.WithLabelValues(string(TurnAI)).Inc()
	o.speakAs(ctx, StateAISpeaking, o.session.Greeting)
}

func (o *Orchestrator) playbackDone(ev event) {
	if o.stale(ev.epoch) {
		return
	}
	o.mu.Lock()
	st := o.state
	o.mu.Unlock()
	switch st {
	case StateAISpeaking:
		o.beginListening()
	case StateDoorClosing:
		ep := ev.epoch
		time.AfterFunc(o.timings.DoorClose, func() {
			o.post(event{kind: evDoorClosed, epoch: ep})
		})
	}
}

func (o *Orchestrator) beginListening() {
	o.mu.Lock()
	if o.exiting {
		o.mu.Unlock()
		return
	}
	o.state = StateUserListening
	o.liveTranscript = ""
	o.noSpeechWarning = false
	o.epoch++
	ep := o.epoch
	o.mu.Unlock()
	o.emitChange()
	hooks := capture.Hooks{
		OnSpeech: func(text string, final bool) {
			o.post(event{kind: evSpeech, epoch: ep, text: text, final: final})
		},
		OnNoSpeechWarning: func() {
			o.post(event{kind: evNoSpeechWarning, epoch: ep})
		},
		OnRepeatTimeout: func() {
			o.post(event{kind: evRepeatTimeout, epoch: ep})
		},
		OnEnded: func(transcript string, reason capture.EndReason) {
			o.post(event{kind: evCaptureEnded, epoch: ep, text: transcript, endReason: reason})
		},
	}
	if err := o.capture.Start(hooks); err != nil {
		log.Printf("[interview] capture start: %v", err)
	}
}

func (o *Orchestrator) speech(ev event) {
	if o.stale(ev.epoch) {
		return
	}
	o.mu.Lock()
	if o.state != StateUserListening {
		o.mu.Unlock()
		return
	}
	o.liveTranscript = ev.text
	o.noSpeechWarning = false
	o.mu.Unlock()
	o.emitChange()
}

func (o *Orchestrator) noSpeechWarned(ev event) {
	if o.stale(ev.epoch) {
		return
	}
	o.mu.Lock()
	if o.state != StateUserListening {
		o.mu.Unlock()
		return
	}
	o.noSpeechWarning = true
	o.mu.Unlock()
	o.emitChange()
}

// repeatTimeout handles prolonged silence: the current question is
// re-spoken with a lead-in, without touching history or the current
// question text.
func (o *Orchestrator) repeatTimeout(ctx context.Context, ev event) {
	if o.stale(ev.epoch) {
		return
	}
	// the timer can cross with the first speech event: an answer that
	// already started wins over the repeat
	if strings.TrimSpace(o.capture.Snapshot()) != "" {
		log.Printf("[interview] silence timeout ignored: answer in progress")
		return
	}
	o.mu.Lock()
	if o.state != StateUserListening {
		o.mu.Unlock()
		return
	}
	o.counters.RepeatRequestCount++
	text := RepeatUtterancePrefix + o.currentAIText
	o.mu.Unlock()
	o.capture.Abort()
	metrics.RepeatRequests.Inc()
	log.Printf("[interview] silence timeout, repeating question")
	o.speakAs(ctx, StateAISpeaking, text)
}

func (o *Orchestrator) captureEnded(ctx context.Context, ev event) {
	if o.stale(ev.epoch) {
		return
	}
	o.mu.Lock()
	if o.state != StateUserListening {
		o.mu.Unlock()
		return
	}
	transcript := strings.TrimSpace(ev.text)
	if transcript == "" {
		o.mu.Unlock()
		log.Printf("[interview] capture ended with no transcript (%s), still listening", ev.endReason)
		return
	}
	o.turns = append(o.turns, Turn{Kind: TurnUser, AIText: o.currentAIText, UserTranscript: transcript})
	o.state = StateThinking
	o.liveTranscript = transcript
	o.noSpeechWarning = false
	o.epoch++
	ep := o.epoch
	req := o.turnRequestLocked(transcript)
	o.mu.Unlock()
	metrics.TurnsTotal.WithLabelValues(string(TurnUser)).Inc()
	o.emitChange()
	go func() {
		dctx, cancel := context.WithTimeout(ctx, o.timings.DecisionTimeout)
		defer cancel()
		start := time.Now()
		dec, err := o.decider.NextTurn(dctx, req)
		metrics.DecisionLatency.Observe(time.Since(start).Seconds())
		o.post(event{kind: evDecision, epoch: ep, decision: dec, err: err})
	}()
}

// turnRequestLocked builds the decision request. Caller holds mu. The
// user turn must already be in the history at this point.
func (o *Orchestrator) turnRequestLocked(transcript string) TurnRequest {
	turns := make([]Turn, len(o.turns))
	copy(turns, o.turns)
	return TurnRequest{
		SessionID:          o.session.SessionID,
		Phase:              o.phase,
		MainQuestionIndex:  o.counters.MainQuestionIndex,
		FollowupCount:      o.counters.FollowupCount,
		RoleTitle:          o.session.RoleTitle,
		RoleDesc:           o.session.RoleDesc,
		RoleBucket:         o.session.RoleBucket,
		Intensity:          o.session.Intensity,
		AIPromptedText:     o.currentAIText,
		UserTranscript:     transcript,
		TurnsSoFar:         turns,
		RepeatRequestCount: o.counters.RepeatRequestCount,
	}
}

func (o *Orchestrator) decided(ctx context.Context, ev event) {
	if o.stale(ev.epoch) {
		return
	}
	o.mu.Lock()
	if o.state != StateThinking {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	if ev.err != nil || ev.decision == nil {
		metrics.DecisionFailures.Inc()
		log.Printf("[interview] turn decision failed, retrying current question: %v", ev.err)
		o.beginListening()
		return
	}
	dec := ev.decision
	switch dec.Action {
	case ActionNextMain, ActionAskFollowup:
		o.mu.Lock()
		if dec.Action == ActionNextMain {
			o.phase = PhaseMain
		} else {
			o.phase = PhaseFollowup
		}
		o.counters.MainQuestionIndex = dec.MainQuestionIndex
		o.counters.FollowupCount = dec.FollowupCount
		o.currentAIText = dec.AIText
		o.turns = append(o.turns, Turn{Kind: TurnAI, AIText: dec.AIText})
		o.mu.Unlock()
		metrics.TurnsTotal.WithLabelValues(string(TurnAI)).Inc()
		o.speakAs(ctx, StateAISpeaking, dec.AIText)
	case ActionRepeatQuestion:
		// the service rephrased the question: no history entry, but the
		// current question text follows the rephrasing
		o.mu.Lock()
		o.counters.RepeatRequestCount++
		o.currentAIText = dec.AIText
		o.mu.Unlock()
		metrics.RepeatRequests.Inc()
		o.speakAs(ctx, StateAISpeaking, dec.AIText)
	case ActionEnd:
		o.mu.Lock()
		o.turns = append(o.turns, Turn{Kind: TurnAI, AIText: dec.AIText})
		o.currentAIText = dec.AIText
		o.completed = true
		o.mu.Unlock()
		metrics.TurnsTotal.WithLabelValues(string(TurnAI)).Inc()
		o.persist(false)
		metrics.InterviewsEnded.WithLabelValues("completed").Inc()
		o.speakAs(ctx, StateDoorClosing, dec.AIText)
	default:
		metrics.DecisionFailures.Inc()
		log.Printf("[interview] unknown decision action %q, retrying current question", dec.Action)
		o.beginListening()
	}
}

func (o *Orchestrator) stopAnswer() {
	o.mu.Lock()
	st := o.state
	exiting := o.exiting
	o.mu.Unlock()
	if exiting || st != StateUserListening {
		log.Printf("[interview] stop answer ignored in state %s", st)
		return
	}
	if strings.TrimSpace(o.capture.Snapshot()) == "" {
		log.Printf("[interview] stop answer ignored: nothing captured yet")
		return
	}
	o.capture.Stop()
}

// exit permanently shuts the interview down and persists what happened.
// An interview that already completed keeps its completed record.
func (o *Orchestrator) exit() {
	o.mu.Lock()
	if o.exiting {
		o.mu.Unlock()
		return
	}
	o.exiting = true
	o.state = StateDoorClosing
	o.epoch++
	completed := o.completed
	o.mu.Unlock()
	o.voice.Stop()
	o.voice.Close()
	o.capture.Abort()
	if !completed {
		o.persist(true)
		metrics.InterviewsEnded.WithLabelValues("abandoned").Inc()
	}
	o.emitChange()
	o.signalDone()
}

func (o *Orchestrator) persist(incomplete bool) {
	o.mu.Lock()
	turns := make([]Turn, len(o.turns))
	copy(turns, o.turns)
	rec := &Record{
		SessionID:          o.session.SessionID,
		Name:               o.session.Name,
		RoleTitle:          o.session.RoleTitle,
		RoleDesc:           o.session.RoleDesc,
		RoleBucket:         o.session.RoleBucket,
		Intensity:          o.session.Intensity,
		Turns:              turns,
		RepeatRequestCount: o.counters.RepeatRequestCount,
		Incomplete:         incomplete,
		EndedAt:            time.Now().UTC(),
	}
	o.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), o.timings.PersistTimeout)
	defer cancel()
	if err := o.sink.Save(ctx, rec); err != nil {
		log.Printf("[interview] persist record %s: %v", rec.SessionID, err)
	}
}
