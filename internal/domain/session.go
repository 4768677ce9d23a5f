package domain

import (
	"fmt"
	"strings"
	"time"
)

// Stage is a phase of the guided-task flow.
type Stage string

const (
	StageSetup      Stage = "setup"
	StageExecution  Stage = "execution"
	StageGrounding  Stage = "grounding"
	StageReflection Stage = "reflection"
)

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageSetup, StageExecution, StageGrounding, StageReflection:
		return true
	}
	return false
}

// Pacing controls whether steps are left as authored or expanded.
type Pacing string

const (
	PacingStandard Pacing = "standard"
	PacingGentle   Pacing = "gentle"
)

// ParsePacing converts user input to a Pacing. Empty input means standard.
func ParsePacing(s string) (Pacing, error) {
	switch Pacing(strings.ToLower(strings.TrimSpace(s))) {
	case "", PacingStandard:
		return PacingStandard, nil
	case PacingGentle:
		return PacingGentle, nil
	}
	return "", fmt.Errorf("unknown pacing %q", s)
}

// Categories lists the task categories offered on the setup screen.
// The choice is echoed back but never drives behavior.
var Categories = []string{"Daily Life", "Work", "Study", "Self-Care"}

// SessionKey identifies one tab session of one device.
type SessionKey struct {
	UserID    string
	SessionID string
}

func (k SessionKey) String() string {
	return k.UserID + ":" + k.SessionID
}

// StoredSession is the persisted form of a session's flow state.
type StoredSession struct {
	Key       SessionKey
	StateJSON string
	CreatedAt time.Time
	UpdatedAt time.Time
}
