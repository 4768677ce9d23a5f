package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/cognify/internal/domain"
	"github.com/ashureev/cognify/internal/flow"
	"github.com/ashureev/cognify/internal/identity"
	"github.com/ashureev/cognify/internal/profile"
)

// Sessions runs commands against stored sessions.
type Sessions interface {
	Options() flow.Options
	View(ctx context.Context, key domain.SessionKey) (flow.View, error)
	Dispatch(ctx context.Context, key domain.SessionKey, cmd flow.Command) (flow.View, error)
	Onboard(ctx context.Context, key domain.SessionKey, form profile.Form) (flow.View, error)
}

// TaskNamer lists the task names with hand-written steps.
type TaskNamer interface {
	Names() []string
}

// SessionHandler serves the guided-task API.
type SessionHandler struct {
	sessions Sessions
	catalog  TaskNamer
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(sessions Sessions, catalog TaskNamer) *SessionHandler {
	return &SessionHandler{sessions: sessions, catalog: catalog}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)
		r.Get("/catalog", h.GetCatalog)
		r.Get("/session", h.GetSession)
		r.Post("/session/commands", h.PostCommand)
		r.Post("/onboarding", h.PostOnboarding)
	})
}

// GetConfig returns the capabilities and choices the page should offer.
func (h *SessionHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	opts := h.sessions.Options()
	JSON(w, http.StatusOK, map[string]interface{}{
		"grounding_enabled":  opts.Grounding,
		"take_break_enabled": opts.TakeBreak,
		"require_onboarding": opts.RequireOnboarding,
		"categories":         domain.Categories,
		"pacing":             []domain.Pacing{domain.PacingStandard, domain.PacingGentle},
		"disclaimer":         flow.Disclaimer,
	})
}

// GetCatalog returns the known task names.
func (h *SessionHandler) GetCatalog(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"tasks": h.catalog.Names(),
	})
}

// GetSession refreshes the caller's session and returns its view.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	key := identity.KeyFromContext(r.Context())
	view, err := h.sessions.View(r.Context(), key)
	if err != nil {
		h.fail(w, key, flow.CmdRefresh, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

// PostCommand applies one command to the caller's session.
func (h *SessionHandler) PostCommand(w http.ResponseWriter, r *http.Request) {
	key := identity.KeyFromContext(r.Context())

	var cmd flow.Command
	if err := decodeJSON(w, r, &cmd); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pacing, err := domain.ParsePacing(string(cmd.Pacing))
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	cmd.Pacing = pacing

	view, err := h.sessions.Dispatch(r.Context(), key, cmd)
	if err != nil {
		h.fail(w, key, cmd.Type, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

// PostOnboarding submits the onboarding form for the caller's session.
func (h *SessionHandler) PostOnboarding(w http.ResponseWriter, r *http.Request) {
	key := identity.KeyFromContext(r.Context())

	var form profile.Form
	if err := decodeJSON(w, r, &form); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.sessions.Onboard(r.Context(), key, form)
	if err != nil {
		h.fail(w, key, flow.CmdAuthenticate, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

func (h *SessionHandler) fail(w http.ResponseWriter, key domain.SessionKey, cmd flow.CommandType, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Session command failed",
			"user_id", key.UserID,
			"session_id", key.SessionID,
			"command", cmd,
			"error", err)
		Error(w, status, "internal error")
		return
	}
	Error(w, status, err.Error())
}
