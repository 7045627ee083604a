// Package interview implements the turn-taking state machine that runs
// a live voice interview: the door-opening intro, alternating
// speak/listen turns driven by an external decision service, and the
// closing sequence.
package interview

import (
	"context"
	"time"

	"github.com/ejanovitz/Rehearse/internal/capture"
)

// State is the coarse interview lifecycle stage shown to the client.
type State string

const (
	StateDoorOpening   State = "door-opening"
	StateAISpeaking    State = "ai-speaking"
	StateUserListening State = "user-listening"
	StateThinking      State = "thinking"
	StateDoorClosing   State = "door-closing"
)

// Phase is the decision-service question phase; values match the wire.
type Phase string

const (
	PhaseGreeting Phase = "GREETING"
	PhaseMain     Phase = "MAIN"
	PhaseFollowup Phase = "FOLLOWUP"
)

// TurnKind distinguishes interviewer lines from candidate answers.
type TurnKind string

const (
	TurnAI   TurnKind = "ai"
	TurnUser TurnKind = "user"
)

// Turn is one history entry. User turns carry both the answer and the
// question text it answered.
type Turn struct {
	Kind           TurnKind `json:"type"`
	AIText         string   `json:"aiText"`
	UserTranscript string   `json:"userTranscript"`
}

// Counters mirrors the decision service's turn bookkeeping. The main
// and followup counts are adopted from decision responses; the repeat
// count is owned here.
type Counters struct {
	MainQuestionIndex  int `json:"mainQuestionIndex"`
	FollowupCount      int `json:"followupCount"`
	RepeatRequestCount int `json:"repeatRequestCount"`
}

// SessionContext is everything known about the interview before the
// door opens, as returned by the decision service's session start.
type SessionContext struct {
	SessionID     string
	Name          string
	RoleTitle     string
	RoleDesc      string
	RoleBucket    string
	Intensity     string
	Greeting      string
	FirstQuestion string
}

// Record is the persisted outcome of one interview.
type Record struct {
	SessionID          string    `json:"sessionId"`
	Name               string    `json:"name"`
	RoleTitle          string    `json:"roleTitle"`
	RoleDesc           string    `json:"roleDesc"`
	RoleBucket         string    `json:"roleBucket"`
	Intensity          string    `json:"intensity"`
	Turns              []Turn    `json:"turns"`
	RepeatRequestCount int       `json:"repeatRequestCount"`
	Incomplete         bool      `json:"incomplete"`
	EndedAt            time.Time `json:"endedAt"`
}

// Action is a decision-service verdict; values match the wire.
type Action string

const (
	ActionNextMain       Action = "NEXT_MAIN"
	ActionAskFollowup    Action = "ASK_FOLLOWUP"
	ActionRepeatQuestion Action = "REPEAT_QUESTION"
	ActionEnd            Action = "END"
)

// TurnRequest is the decision-service request issued after every
// candidate answer.
type TurnRequest struct {
	SessionID          string `json:"sessionId"`
	Phase              Phase  `json:"phase"`
	MainQuestionIndex  int    `json:"mainQuestionIndex"`
	FollowupCount      int    `json:"followupCount"`
	RoleTitle          string `json:"roleTitle"`
	RoleDesc           string `json:"roleDesc"`
	RoleBucket         string `json:"roleBucket"`
	Intensity          string `json:"intensity"`
	AIPromptedText     string `json:"aiPromptedText"`
	UserTranscript     string `json:"userTranscript"`
	TurnsSoFar         []Turn `json:"turnsSoFar"`
	RepeatRequestCount int    `json:"repeatRequestCount"`
}

// TurnDecision is the decision-service response.
type TurnDecision struct {
	Action            Action `json:"action"`
	AIText            string `json:"aiText"`
	MainQuestionIndex int    `json:"mainQuestionIndex"`
	FollowupCount     int    `json:"followupCount"`
}

// Snapshot is the reactive view pushed to the client after every
// mutation.
type Snapshot struct {
	State           State    `json:"state"`
	Phase           Phase    `json:"phase"`
	CurrentAIText   string   `json:"currentAiText"`
	LiveTranscript  string   `json:"liveTranscript"`
	NoSpeechWarning bool     `json:"noSpeechWarning"`
	Counters        Counters `json:"counters"`
	TurnCount       int      `json:"turnCount"`
	Muted           bool     `json:"muted"`
}

// RepeatUtterancePrefix prefixes the locally generated repeat of the
// current question after prolonged silence.
const RepeatUtterancePrefix = "Let me repeat the question. "

// TurnDecider asks the decision service what happens after an answer.
type TurnDecider interface {
	NextTurn(ctx context.Context, req TurnRequest) (*TurnDecision, error)
}

// AnswerCapture runs one listening window at a time on behalf of the
// orchestrator.
type AnswerCapture interface {
	Start(h capture.Hooks) error
	Stop()
	Abort()
	Snapshot() string
}

// VoicePlayer speaks interviewer lines. Play blocks until the line
// finished or was preempted; it never fails the interview.
type VoicePlayer interface {
	Play(ctx context.Context, text string)
	Playing() bool
	SetMuted(muted bool)
	Stop()
	Close()
}

// RecordSink persists finished interview records.
type RecordSink interface {
	Save(ctx context.Context, rec *Record) error
}

// Timings collects the orchestration delays so tests can shrink them.
type Timings struct {
	DoorOpen        time.Duration
	DoorClose       time.Duration
	DecisionTimeout time.Duration
	PersistTimeout  time.Duration
}

// DefaultTimings returns the production delays.
func DefaultTimings() Timings {
	return Timings{
		DoorOpen:        2 * time.Second,
		DoorClose:       2 * time.Second,
		DecisionTimeout: 30 * time.Second,
		PersistTimeout:  5 * time.Second,
	}
}
