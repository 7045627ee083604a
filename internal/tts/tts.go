// Package tts turns interviewer lines into playable audio clips.
package tts

import "context"

// Clip is one synthesized utterance, encoded so a browser can play it
// directly.
type Clip struct {
	Audio []byte
	MIME  string
}

// Synthesizer produces a clip for the given text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Clip, error)
}
