package flow

import (
	"errors"

	"github.com/ashureev/cognify/internal/domain"
)

// CommandType names a user action.
type CommandType string

const (
	CmdRefresh      CommandType = "refresh"
	CmdStart        CommandType = "start"
	CmdDone         CommandType = "done"
	CmdNotSure      CommandType = "not_sure"
	CmdTooMuch      CommandType = "too_much"
	CmdSteadier     CommandType = "steadier"
	CmdReturnToTask CommandType = "return_to_task"
	CmdTakeBreak    CommandType = "take_break"
	CmdStartNew     CommandType = "start_new"
	CmdReset        CommandType = "reset"
	CmdSignOut      CommandType = "sign_out"
	CmdAuthenticate CommandType = "authenticate"
)

// Command is one user action. Only start and authenticate carry a payload.
type Command struct {
	Type     CommandType   `json:"type"`
	Task     string        `json:"task,omitempty"`
	Category string        `json:"category,omitempty"`
	Pacing   domain.Pacing `json:"pacing,omitempty"`
	UserName string        `json:"-"`
}

var (
	// ErrUnknownCommand is returned for a command type the machine does not know.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidTransition is returned when a command is not accepted in the current stage.
	ErrInvalidTransition = errors.New("command not allowed in current stage")
	// ErrCapabilityDisabled is returned when a command belongs to a capability that is switched off.
	ErrCapabilityDisabled = errors.New("capability disabled")
	// ErrOnboardingRequired is returned when onboarding must be completed first.
	ErrOnboardingRequired = errors.New("onboarding required")
)

// NoticeLevel tells the page how to style a notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

// Notice is an inline, non-blocking message attached to one response.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Outcome describes what a command did besides producing the next state.
type Outcome struct {
	From      domain.Stage
	To        domain.Stage
	Hesitated bool
	Notices   []Notice
}

// Transitioned reports whether the stage changed.
func (o Outcome) Transitioned() bool { return o.From != o.To }

const (
	msgEmptyTask  = "Please enter a task to begin."
	msgSimplified = "That is okay. Let us try an even smaller version of this step."
	simplifyLead  = "Just look at what is needed for: "
)
