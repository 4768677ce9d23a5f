package flow

import (
	"slices"

	"github.com/ashureev/cognify/internal/domain"
)

// Page copy. Kept in one place so the page and the API agree on wording.
const (
	SetupPrompt       = "What would you like to focus on right now?"
	SupportText       = "Focus only on this movement. Nothing else matters yet."
	PaceReassurance   = "We are going at your pace. There is no timer here."
	GroundingTitle    = "Taking a moment"
	GroundingMessage  = "Let us take a moment. Notice your breath. Notice your feet on the floor. There is no rush."
	ReflectionTitle   = "Task Complete"
	ReflectionMessage = "You showed great persistence. Take a moment to acknowledge the effort you put in."
	OnboardingPrompt  = "Tell us a little about yourself before we begin."
	Disclaimer        = "Cognify is a cognitive support tool and does not provide medical advice, " +
		"diagnosis, or treatment. It is designed to assist with task execution flow through heuristic logic."
)

// Action is a button the page may offer in the current view.
type Action struct {
	Type   CommandType   `json:"type"`
	Label  string        `json:"label"`
	Pacing domain.Pacing `json:"pacing,omitempty"`
}

// View is the render model of a state.
type View struct {
	Stage              domain.Stage  `json:"stage"`
	OnboardingRequired bool          `json:"onboarding_required"`
	Authenticated      bool          `json:"authenticated"`
	UserName           string        `json:"user_name,omitempty"`
	Title              string        `json:"title,omitempty"`
	Prompt             string        `json:"prompt,omitempty"`
	Task               string        `json:"task,omitempty"`
	Category           string        `json:"category,omitempty"`
	Pacing             domain.Pacing `json:"pacing"`
	Step               string        `json:"step,omitempty"`
	StepIndex          int           `json:"step_index"`
	StepCount          int           `json:"step_count"`
	Progress           float64       `json:"progress"`
	MentalLoad         int           `json:"mental_load"`
	HesitationCount    int           `json:"hesitation_count"`
	SupportText        string        `json:"support_text,omitempty"`
	Reassurance        string        `json:"reassurance,omitempty"`
	Message            string        `json:"message,omitempty"`
	Actions            []Action      `json:"actions"`
	Notices            []Notice      `json:"notices,omitempty"`
	Disclaimer         string        `json:"disclaimer"`
}

// WithNotices returns a copy of v carrying notices.
func (v View) WithNotices(notices ...Notice) View {
	if len(notices) > 0 {
		v.Notices = append(slices.Clone(v.Notices), notices...)
	}
	return v
}

// Render builds the view of s. Notices are attached by the caller.
func (m *Machine) Render(s State) View {
	v := View{
		Stage:           s.Stage,
		Authenticated:   s.Authenticated,
		UserName:        s.UserName,
		Task:            s.CurrentTask,
		Category:        s.Category,
		Pacing:          s.PacingLevel,
		StepIndex:       s.StepIndex,
		StepCount:       len(s.Steps),
		MentalLoad:      s.MentalLoad,
		HesitationCount: s.HesitationCount,
		Disclaimer:      Disclaimer,
	}

	if m.opts.RequireOnboarding && !s.Authenticated {
		v.OnboardingRequired = true
		v.Prompt = OnboardingPrompt
		v.Actions = []Action{}
		return v
	}

	switch s.Stage {
	case domain.StageSetup:
		v.Prompt = SetupPrompt
		v.Actions = []Action{
			{Type: CmdStart, Label: "Start Steady", Pacing: domain.PacingStandard},
			{Type: CmdStart, Label: "Start Gentle (Smaller Steps)", Pacing: domain.PacingGentle},
		}
	case domain.StageExecution:
		v.Step = s.CurrentStep()
		if v.StepCount > 0 {
			v.Progress = float64(s.StepIndex) / float64(v.StepCount)
		}
		v.SupportText = SupportText
		if s.HesitationCount > 0 {
			v.Reassurance = PaceReassurance
		}
		v.Actions = []Action{{Type: CmdDone, Label: "I have done this"}}
		if m.opts.Grounding {
			v.Actions = append(v.Actions,
				Action{Type: CmdNotSure, Label: "Not sure how"},
				Action{Type: CmdTooMuch, Label: "Too much right now"},
			)
		}
		if m.opts.TakeBreak {
			v.Actions = append(v.Actions, Action{Type: CmdTakeBreak, Label: "Take a break"})
		}
	case domain.StageGrounding:
		v.Title = GroundingTitle
		v.Message = GroundingMessage
		v.Actions = []Action{
			{Type: CmdSteadier, Label: "I feel a bit steadier now"},
			{Type: CmdReturnToTask, Label: "Return to task"},
		}
	case domain.StageReflection:
		v.Title = ReflectionTitle
		v.Message = ReflectionMessage
		v.Progress = 1
		v.Actions = []Action{{Type: CmdStartNew, Label: "Start a new task"}}
	}

	v.Actions = append(v.Actions, Action{Type: CmdReset, Label: "Reset Everything"})
	if m.opts.RequireOnboarding {
		v.Actions = append(v.Actions, Action{Type: CmdSignOut, Label: "Sign out"})
	}
	return v
}
