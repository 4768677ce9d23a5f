// Package flow implements the guided-task state machine.
//
// State is a plain value. Machine.Apply takes the current state and one
// command and returns the next state; nothing in this package performs I/O
// or reads the clock, so callers pass "now" explicitly.
package flow

import (
	"time"

	"github.com/ashureev/cognify/internal/domain"
)

const (
	// InitialMentalLoad is the load shown on a fresh session.
	InitialMentalLoad = 20
	minMentalLoad     = 0
	maxMentalLoad     = 100
)

// State is the per-session record driving the flow.
type State struct {
	Stage               domain.Stage  `json:"stage"`
	CurrentTask         string        `json:"current_task,omitempty"`
	Category            string        `json:"category,omitempty"`
	Steps               []string      `json:"steps,omitempty"`
	StepIndex           int           `json:"step_index"`
	HesitationCount     int           `json:"hesitation_count"`
	MentalLoad          int           `json:"mental_load"`
	PacingLevel         domain.Pacing `json:"pacing_level"`
	LastInteractionTime time.Time     `json:"last_interaction_time"`
	Authenticated       bool          `json:"authenticated"`
	UserName            string        `json:"user_name,omitempty"`
}

// NewState returns the defaults of a fresh session.
func NewState(now time.Time) State {
	return State{
		Stage:               domain.StageSetup,
		MentalLoad:          InitialMentalLoad,
		PacingLevel:         domain.PacingStandard,
		LastInteractionTime: now,
	}
}

// reset clears every per-task field. Authentication survives.
func (s State) reset(now time.Time) State {
	next := NewState(now)
	next.Authenticated = s.Authenticated
	next.UserName = s.UserName
	return next
}

// CurrentStep returns the step at StepIndex, or "" when there is none.
func (s State) CurrentStep() string {
	if s.StepIndex < 0 || s.StepIndex >= len(s.Steps) {
		return ""
	}
	return s.Steps[s.StepIndex]
}

// Valid reports whether s satisfies the structural invariants: the stage is
// known, the load is within bounds, and execution has a step to show.
func (s State) Valid() bool {
	if !s.Stage.Valid() {
		return false
	}
	if s.MentalLoad < minMentalLoad || s.MentalLoad > maxMentalLoad {
		return false
	}
	if s.Stage == domain.StageExecution {
		return len(s.Steps) > 0 && s.StepIndex >= 0 && s.StepIndex < len(s.Steps)
	}
	return true
}

func clampLoad(v int) int {
	return min(max(v, minMentalLoad), maxMentalLoad)
}

// withLoad returns s with MentalLoad set to v clamped to [0,100].
func (s State) withLoad(v int) State {
	s.MentalLoad = clampLoad(v)
	return s
}
