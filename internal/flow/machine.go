package flow

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ashureev/cognify/internal/domain"
)

// Decomposer turns a task name into an ordered list of steps.
type Decomposer interface {
	Decompose(task string, pacing domain.Pacing) []string
}

// Options switches the optional capabilities of the flow.
type Options struct {
	// Grounding enables "not sure how", "too much right now" and the
	// grounding stage.
	Grounding bool
	// TakeBreak enables returning from execution to setup mid-task.
	TakeBreak bool
	// RequireOnboarding gates every command behind a completed onboarding
	// form and enables sign-out.
	RequireOnboarding bool
}

// Machine applies commands to states.
type Machine struct {
	opts    Options
	catalog Decomposer
}

// NewMachine creates a machine using catalog for decomposition.
func NewMachine(catalog Decomposer, opts Options) *Machine {
	return &Machine{opts: opts, catalog: catalog}
}

// Options returns the capability switches the machine was built with.
func (m *Machine) Options() Options { return m.opts }

// Apply returns the state that follows s after cmd at time now. On error the
// returned state is s unchanged.
//
// Any command received during execution first runs the hesitation detector,
// because the page renders the current step before it handles the click.
func (m *Machine) Apply(s State, cmd Command, now time.Time) (State, Outcome, error) {
	out := Outcome{From: s.Stage, To: s.Stage}

	if err := m.admit(s, cmd.Type); err != nil {
		return s, out, err
	}

	next := s
	if next.Stage == domain.StageExecution {
		next, out.Hesitated = applyHesitation(next, now)
	}

	var err error
	switch cmd.Type {
	case CmdRefresh:
	case CmdStart:
		next, err = m.start(next, cmd, now, &out)
	case CmdDone:
		next, err = done(next, now)
	case CmdNotSure:
		next, err = notSure(next, &out)
	case CmdTooMuch:
		next, err = requireStage(next, domain.StageExecution, cmd.Type)
		next.Stage = domain.StageGrounding
	case CmdSteadier:
		next, err = requireStage(next, domain.StageGrounding, cmd.Type)
		next.HesitationCount = 0
	case CmdReturnToTask:
		next, err = requireStage(next, domain.StageGrounding, cmd.Type)
		next.LastInteractionTime = now
		next.Stage = domain.StageExecution
	case CmdTakeBreak:
		next, err = requireStage(next, domain.StageExecution, cmd.Type)
		next.Stage = domain.StageSetup
	case CmdStartNew:
		next, err = requireStage(next, domain.StageReflection, cmd.Type)
		next = next.reset(now)
	case CmdReset:
		next = next.reset(now)
	case CmdSignOut:
		next = NewState(now)
	case CmdAuthenticate:
		next.Authenticated = true
		next.UserName = strings.TrimSpace(cmd.UserName)
	}
	if err != nil {
		return s, Outcome{From: s.Stage, To: s.Stage}, err
	}

	out.To = next.Stage
	return next, out, nil
}

// admit checks that cmd is known, enabled, and allowed before onboarding.
func (m *Machine) admit(s State, t CommandType) error {
	switch t {
	case CmdRefresh, CmdStart, CmdDone, CmdStartNew, CmdReset:
	case CmdNotSure, CmdTooMuch, CmdSteadier, CmdReturnToTask:
		if !m.opts.Grounding {
			return fmt.Errorf("%w: %s", ErrCapabilityDisabled, t)
		}
	case CmdTakeBreak:
		if !m.opts.TakeBreak {
			return fmt.Errorf("%w: %s", ErrCapabilityDisabled, t)
		}
	case CmdSignOut, CmdAuthenticate:
		if !m.opts.RequireOnboarding {
			return fmt.Errorf("%w: %s", ErrCapabilityDisabled, t)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, t)
	}

	if m.opts.RequireOnboarding && !s.Authenticated {
		switch t {
		case CmdRefresh, CmdAuthenticate:
		default:
			return fmt.Errorf("%w: %s", ErrOnboardingRequired, t)
		}
	}
	return nil
}

func requireStage(s State, want domain.Stage, t CommandType) (State, error) {
	if s.Stage != want {
		return s, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, t, s.Stage)
	}
	return s, nil
}

func (m *Machine) start(s State, cmd Command, now time.Time, out *Outcome) (State, error) {
	if _, err := requireStage(s, domain.StageSetup, cmd.Type); err != nil {
		return s, err
	}
	task := strings.TrimSpace(cmd.Task)
	if task == "" {
		out.Notices = append(out.Notices, Notice{Level: NoticeWarning, Message: msgEmptyTask})
		return s, nil
	}
	pacing := cmd.Pacing
	if pacing == "" {
		pacing = domain.PacingStandard
	}

	steps := m.catalog.Decompose(task, pacing)
	if len(steps) == 0 {
		// A Decomposer must never do this; refuse rather than break the
		// execution invariant.
		return s, fmt.Errorf("%w: no steps for task %q", ErrInvalidTransition, task)
	}

	s.CurrentTask = task
	s.Category = cmd.Category
	s.PacingLevel = pacing
	s.Steps = steps
	s.StepIndex = 0
	s.LastInteractionTime = now
	s.Stage = domain.StageExecution
	return s, nil
}

func done(s State, now time.Time) (State, error) {
	if _, err := requireStage(s, domain.StageExecution, CmdDone); err != nil {
		return s, err
	}
	s.LastInteractionTime = now
	if s.StepIndex+1 < len(s.Steps) {
		s.StepIndex++
		return s.withLoad(max(doneLoadFloor, s.MentalLoad-doneLoadDecrease)), nil
	}
	s.Stage = domain.StageReflection
	return s, nil
}

func notSure(s State, out *Outcome) (State, error) {
	if _, err := requireStage(s, domain.StageExecution, CmdNotSure); err != nil {
		return s, err
	}
	simpler := simplifyLead + s.CurrentStep()
	s.Steps = slices.Insert(slices.Clone(s.Steps), s.StepIndex+1, simpler)
	out.Notices = append(out.Notices, Notice{Level: NoticeInfo, Message: msgSimplified})
	return s.withLoad(s.MentalLoad + notSureLoadIncrease), nil
}
