// Package session runs the guided-task flow for stored sessions.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/cognify/internal/domain"
	"github.com/ashureev/cognify/internal/flow"
	"github.com/ashureev/cognify/internal/metrics"
	"github.com/ashureev/cognify/internal/profile"
	"github.com/ashureev/cognify/internal/store"
)

const (
	msgFormIncomplete = "Please complete every field before continuing."
	msgSavedLocally   = "We could not reach storage. Your data is saved locally for this session only."
)

// Publisher receives every view produced for a session.
type Publisher interface {
	Publish(key domain.SessionKey, view flow.View)
}

// Service loads a session, applies one command, saves and publishes the
// result. Commands for the same session are serialized.
type Service struct {
	repo    store.Repository
	machine *flow.Machine
	saver   *profile.Saver
	pub     Publisher
	metrics *metrics.Metrics
	locks   *keyLocks
	now     func() time.Time
}

// NewService creates a session service. pub and m may be nil.
func NewService(repo store.Repository, machine *flow.Machine, saver *profile.Saver, pub Publisher, m *metrics.Metrics) *Service {
	if saver == nil {
		saver = profile.NewSaver(profile.Disabled(), 0, m)
	}
	return &Service{
		repo:    repo,
		machine: machine,
		saver:   saver,
		pub:     pub,
		metrics: m,
		locks:   newKeyLocks(),
		now:     time.Now,
	}
}

// Options returns the capability switches of the underlying machine.
func (s *Service) Options() flow.Options { return s.machine.Options() }

// View refreshes the session and returns its view.
func (s *Service) View(ctx context.Context, key domain.SessionKey) (flow.View, error) {
	return s.Dispatch(ctx, key, flow.Command{Type: flow.CmdRefresh})
}

// Peek renders the stored state of the session without applying any
// command, so it never triggers hesitation. Nothing is saved or published.
func (s *Service) Peek(ctx context.Context, key domain.SessionKey) (flow.View, error) {
	unlock := s.locks.lock(key.String())
	defer unlock()

	_, state, err := s.load(ctx, key)
	if err != nil {
		return flow.View{}, err
	}
	return s.machine.Render(state), nil
}

// Dispatch applies cmd to the session identified by key. Flow errors
// (flow.ErrInvalidTransition and friends) are returned unwrapped so callers
// can match them with errors.Is; the stored state is untouched in that case.
func (s *Service) Dispatch(ctx context.Context, key domain.SessionKey, cmd flow.Command) (flow.View, error) {
	unlock := s.locks.lock(key.String())
	defer unlock()

	stored, state, err := s.load(ctx, key)
	if err != nil {
		s.metrics.Command(string(cmd.Type), "error")
		return flow.View{}, err
	}

	next, out, err := s.machine.Apply(state, cmd, s.now())
	if err != nil {
		s.metrics.Command(string(cmd.Type), "rejected")
		slog.Info("Command rejected",
			"user_id", key.UserID,
			"session_id", key.SessionID,
			"command", cmd.Type,
			"stage", state.Stage,
			"error", err)
		return flow.View{}, err
	}

	if err := s.save(ctx, key, stored, next); err != nil {
		s.metrics.Command(string(cmd.Type), "error")
		return flow.View{}, err
	}
	s.observe(key, cmd.Type, out)

	return s.finish(key, next, out.Notices), nil
}

// Onboard validates the onboarding form, attempts to persist the profile and
// signs the session in. Persistence failure adds a notice but never blocks
// sign-in. An incomplete form returns a warning and changes nothing.
func (s *Service) Onboard(ctx context.Context, key domain.SessionKey, form profile.Form) (flow.View, error) {
	if !s.machine.Options().RequireOnboarding {
		return flow.View{}, fmt.Errorf("%w: onboarding", flow.ErrCapabilityDisabled)
	}

	unlock := s.locks.lock(key.String())
	defer unlock()

	stored, state, err := s.load(ctx, key)
	if err != nil {
		return flow.View{}, err
	}
	if state.Authenticated {
		return flow.View{}, fmt.Errorf("%w: already onboarded", flow.ErrInvalidTransition)
	}

	if missing := form.Validate(); len(missing) > 0 {
		s.metrics.Command(string(flow.CmdAuthenticate), "incomplete")
		slog.Info("Onboarding form incomplete", "user_id", key.UserID, "session_id", key.SessionID, "fields", missing)
		return s.machine.Render(state).WithNotices(flow.Notice{Level: flow.NoticeWarning, Message: msgFormIncomplete}), nil
	}

	now := s.now()
	var notices []flow.Notice
	if !s.saver.Save(ctx, form.Record(now)) {
		notices = append(notices, flow.Notice{Level: flow.NoticeInfo, Message: msgSavedLocally})
	}

	cmd := flow.Command{Type: flow.CmdAuthenticate, UserName: form.Normalize().Name}
	next, out, err := s.machine.Apply(state, cmd, now)
	if err != nil {
		return flow.View{}, err
	}
	if err := s.save(ctx, key, stored, next); err != nil {
		return flow.View{}, err
	}
	s.observe(key, cmd.Type, out)
	slog.Info("Session onboarded", "user_id", key.UserID, "session_id", key.SessionID)

	return s.finish(key, next, append(notices, out.Notices...)), nil
}

func (s *Service) observe(key domain.SessionKey, cmd flow.CommandType, out flow.Outcome) {
	s.metrics.Command(string(cmd), "ok")
	if out.Hesitated {
		s.metrics.Hesitation()
		slog.Debug("Hesitation detected", "user_id", key.UserID, "session_id", key.SessionID)
	}
	if out.Transitioned() {
		s.metrics.Transition(string(out.From), string(out.To))
		slog.Info("Stage changed",
			"user_id", key.UserID,
			"session_id", key.SessionID,
			"command", cmd,
			"from", out.From,
			"to", out.To)
	}
}

// finish publishes the notice-free view and returns it with notices attached.
func (s *Service) finish(key domain.SessionKey, state flow.State, notices []flow.Notice) flow.View {
	view := s.machine.Render(state)
	if s.pub != nil {
		s.pub.Publish(key, view)
	}
	return view.WithNotices(notices...)
}

// load returns the stored row (nil for a new session) and its decoded state.
// Undecodable or inconsistent rows are replaced by a fresh state.
func (s *Service) load(ctx context.Context, key domain.SessionKey) (*domain.StoredSession, flow.State, error) {
	stored, err := s.repo.GetSession(ctx, key)
	if err != nil {
		return nil, flow.State{}, fmt.Errorf("load session %s: %w", key, err)
	}
	if stored == nil {
		return nil, flow.NewState(s.now()), nil
	}

	var state flow.State
	if err := json.Unmarshal([]byte(stored.StateJSON), &state); err != nil || !state.Valid() {
		if err == nil {
			err = errors.New("state violates invariants")
		}
		slog.Warn("Discarding unreadable session state", "user_id", key.UserID, "session_id", key.SessionID, "error", err)
		return stored, flow.NewState(s.now()), nil
	}
	return stored, state, nil
}

func (s *Service) save(ctx context.Context, key domain.SessionKey, stored *domain.StoredSession, state flow.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	now := s.now()
	row := &domain.StoredSession{Key: key, StateJSON: string(data), CreatedAt: now, UpdatedAt: now}
	if stored != nil {
		row.CreatedAt = stored.CreatedAt
	}
	if err := s.repo.SaveSession(ctx, row); err != nil {
		return fmt.Errorf("save session %s: %w", key, err)
	}
	return nil
}
