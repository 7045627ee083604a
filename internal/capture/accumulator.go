package capture

import (
	"strings"
	"sync"
)

// Accumulator assembles the best transcript from recognizer segments:
// final segments concatenated in arrival order, with the latest interim
// as fallback while no final exists yet.
type Accumulator struct {
	mu      sync.Mutex
	finals  []string
	interim string
}

func NewAccumulator() *Accumulator { return &Accumulator{} }

// Add records one recognizer segment.
func (a *Accumulator) Add(text string, final bool) {
	text = strings.TrimSpace(text)
	a.mu.Lock()
	defer a.mu.Unlock()
	if !final {
		a.interim = text
		return
	}
	if text != "" {
		a.finals = append(a.finals, text)
	}
	a.interim = ""
}

// Snapshot returns the current best transcript.
func (a *Accumulator) Snapshot() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.finals) == 0 {
		return a.interim
	}
	return strings.Join(a.finals, " ")
}

// Reset clears all collected segments.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finals = nil
	a.interim = ""
}
