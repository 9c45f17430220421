package sync

import (
	"fmt"
	gosync "sync"
)

// Phase is the orchestrator's position within a run.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseConnecting    Phase = "connecting"
	PhaseListing       Phase = "listing"
	PhaseDiffing       Phase = "diffing"
	PhaseApplying      Phase = "applying"
	PhaseDisconnecting Phase = "disconnecting"
	PhaseFailed        Phase = "failed"
)

// transitions lists the legal successors of each phase. Failed is only
// reachable before any action has been attempted.
var transitions = map[Phase][]Phase{
	PhaseIdle:          {PhaseConnecting},
	PhaseConnecting:    {PhaseListing, PhaseFailed},
	PhaseListing:       {PhaseDiffing, PhaseFailed},
	PhaseDiffing:       {PhaseApplying},
	PhaseApplying:      {PhaseDisconnecting},
	PhaseDisconnecting: {PhaseIdle},
	PhaseFailed:        {PhaseIdle},
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// PhaseMachine tracks the current phase and notifies an observer on every
// change. Safe for concurrent readers.
type PhaseMachine struct {
	mu       gosync.RWMutex
	current  Phase
	onChange func(from, to Phase)
}

// NewPhaseMachine starts in PhaseIdle. onChange may be nil.
func NewPhaseMachine(onChange func(from, to Phase)) *PhaseMachine {
	return &PhaseMachine{current: PhaseIdle, onChange: onChange}
}

// Current returns the phase.
func (m *PhaseMachine) Current() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// To moves the machine to next.
func (m *PhaseMachine) To(next Phase) error {
	m.mu.Lock()
	from := m.current
	if !CanTransition(from, next) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}
	m.current = next
	m.mu.Unlock()

	if m.onChange != nil {
		m.onChange(from, next)
	}
	return nil
}

// reset forces the machine back to idle after a run that ended abnormally.
func (m *PhaseMachine) reset() {
	m.mu.Lock()
	m.current = PhaseIdle
	m.mu.Unlock()
}
