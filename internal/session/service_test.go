package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ashureev/cognify/internal/catalog"
	"github.com/ashureev/cognify/internal/domain"
	"github.com/ashureev/cognify/internal/flow"
	"github.com/ashureev/cognify/internal/profile"
	"github.com/ashureev/cognify/internal/store"
)

type recordingPublisher struct {
	mu    sync.Mutex
	views map[domain.SessionKey][]flow.View
}

func (p *recordingPublisher) Publish(key domain.SessionKey, view flow.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.views == nil {
		p.views = make(map[domain.SessionKey][]flow.View)
	}
	p.views[key] = append(p.views[key], view)
}

func (p *recordingPublisher) last(key domain.SessionKey) (flow.View, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	vs := p.views[key]
	if len(vs) == 0 {
		return flow.View{}, false
	}
	return vs[len(vs)-1], true
}

type failingSink struct{}

func (failingSink) Save(context.Context, domain.ProfileRecord) error {
	return errors.New("sheet offline")
}
func (failingSink) Name() string { return "failing" }

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var testKey = domain.SessionKey{UserID: "anon_1", SessionID: "tab-1"}

func newTestService(t *testing.T, opts flow.Options, sink profile.Sink) (*Service, *store.MemoryStore, *recordingPublisher, *fakeClock) {
	t.Helper()
	repo := store.NewMemory()
	pub := &recordingPublisher{}
	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewService(repo, flow.NewMachine(catalog.New(), opts), profile.NewSaver(sink, time.Second, nil), pub, nil)
	svc.now = clock.now
	return svc, repo, pub, clock
}

func TestServiceStartsFreshSession(t *testing.T) {
	svc, repo, _, _ := newTestService(t, flow.Options{}, nil)
	ctx := context.Background()

	view, err := svc.View(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, domain.StageSetup, view.Stage)
	assert.Equal(t, flow.InitialMentalLoad, view.MentalLoad)

	stored, err := repo.GetSession(ctx, testKey)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Contains(t, stored.StateJSON, `"stage":"setup"`)
}

func TestServiceFullTaskFlow(t *testing.T) {
	svc, _, pub, clock := newTestService(t, flow.Options{}, nil)
	ctx := context.Background()

	view, err := svc.Dispatch(ctx, testKey, flow.Command{Type: flow.CmdStart, Task: "Laundry"})
	require.NoError(t, err)
	assert.Equal(t, domain.StageExecution, view.Stage)
	assert.Equal(t, 5, view.StepCount)
	assert.Equal(t, "Gather clothes", view.Step)

	for i := 0; i < 4; i++ {
		clock.advance(5 * time.Second)
		view, err = svc.Dispatch(ctx, testKey, flow.Command{Type: flow.CmdDone})
		require.NoError(t, err)
		assert.Equal(t, domain.StageExecution, view.Stage)
	}

	clock.advance(5 * time.Second)
	view, err = svc.Dispatch(ctx, testKey, flow.Command{Type: flow.CmdDone})
	require.NoError(t, err)
	assert.Equal(t, domain.StageReflection, view.Stage)

	published, ok := pub.last(testKey)
	require.True(t, ok)
	assert.Equal(t, domain.StageReflection, published.Stage)
}

func TestServiceStateSurvivesReload(t *testing.T) {
	svc, repo, _, clock := newTestService(t, flow.Options{}, nil)
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, testKey, flow.Command{Type: flow.CmdStart, Task: "email"})
	require.NoError(t, err)

	other := NewService(repo, svc.machine, nil, nil, nil)
	other.now = clock.now
	view, err := other.View(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, domain.StageExecution, view.Stage)
	assert.Equal(t, "email", view.Task)
	assert.Equal(t, 0, view.StepIndex)
}

func TestServiceSessionsAreIsolated(t *testing.T) {
	svc, _, _, _ := newTestService(t, flow.Options{}, nil)
	ctx := context.Background()
	otherTab := domain.SessionKey{UserID: testKey.UserID, SessionID: "tab-2"}

	_, err := svc.Dispatch(ctx, testKey, flow.Command{Type: flow.CmdStart, Task: "laundry"})
	require.NoError(t, err)

	view, err := svc.View(ctx, otherTab)
	require.NoError(t, err)
	assert.Equal(t, domain.StageSetup, view.Stage)
}

func TestServiceRejectedCommandKeepsState(t *testing.T) {
	svc, repo, _, _ := newTestService(t, flow.Options{}, nil)
	ctx := context.Background()

	_, err := svc.View(ctx, testKey)
	require.NoError(t, err)
	before, err := repo.GetSession(ctx, testKey)
	require.NoError(t, err)

	_, err = svc.Dispatch(ctx, testKey, flow.Command{Type: flow.CmdDone})
	assert.ErrorIs(t, err, flow.ErrInvalidTransition)

	_, err = svc.Dispatch(ctx, testKey, flow.Command{Type: flow.CmdTakeBreak})
	assert.ErrorIs(t, err, flow.ErrCapabilityDisabled)

	after, err := repo.GetSession(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, before.StateJSON, after.StateJSON)
}

func TestServiceEmptyTaskNotice(t *testing.T) {
	svc, _, pub, _ := newTestService(t, flow.Options{}, nil)

	view, err := svc.Dispatch(context.Background(), testKey, flow.Command{Type: flow.CmdStart, Task: "   "})
	require.NoError(t, err)
	assert.Equal(t, domain.StageSetup, view.Stage)
	require.Len(t, view.Notices, 1)
	assert.Equal(t, flow.NoticeWarning, view.Notices[0].Level)

	published, ok := pub.last(testKey)
	require.True(t, ok)
	assert.Empty(t, published.Notices)
}

func TestServiceHesitationIncreasesLoad(t *testing.T) {
	svc, _, _, clock := newTestService(t, flow.Options{}, nil)
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, testKey, flow.Command{Type: flow.CmdStart, Task: "laundry"})
	require.NoError(t, err)

	clock.advance(46 * time.Second)
	view, err := svc.View(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 1, view.HesitationCount)
	assert.Equal(t, flow.InitialMentalLoad+15, view.MentalLoad)
}

func TestServiceDiscardsCorruptState(t *testing.T) {
	svc, repo, _, _ := newTestService(t, flow.Options{}, nil)
	ctx := context.Background()
	require.NoError(t, repo.SaveSession(ctx, &domain.StoredSession{Key: testKey, StateJSON: "{not json"}))

	view, err := svc.View(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, domain.StageSetup, view.Stage)
}

func validForm() profile.Form {
	return profile.Form{Name: " Ada ", Age: 36, Occupation: "Engineer", Gender: "Female", Goal: "Finish chores"}
}

func TestServiceOnboarding(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		svc, _, _, _ := newTestService(t, flow.Options{}, nil)
		_, err := svc.Onboard(context.Background(), testKey, validForm())
		assert.ErrorIs(t, err, flow.ErrCapabilityDisabled)
	})

	t.Run("gate blocks commands", func(t *testing.T) {
		svc, _, _, _ := newTestService(t, flow.Options{RequireOnboarding: true}, nil)
		_, err := svc.Dispatch(context.Background(), testKey, flow.Command{Type: flow.CmdStart, Task: "laundry"})
		assert.ErrorIs(t, err, flow.ErrOnboardingRequired)
	})

	incomplete := []struct {
		name  string
		blank func(*profile.Form)
	}{
		{name: "empty occupation", blank: func(f *profile.Form) { f.Occupation = "" }},
		{name: "blank goal", blank: func(f *profile.Form) { f.Goal = "  " }},
		{name: "blank name", blank: func(f *profile.Form) { f.Name = " " }},
		{name: "missing age", blank: func(f *profile.Form) { f.Age = 0 }},
	}
	for _, tt := range incomplete {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _, _ := newTestService(t, flow.Options{RequireOnboarding: true}, nil)
			ctx := context.Background()
			_, err := svc.View(ctx, testKey)
			require.NoError(t, err)
			before, err := repo.GetSession(ctx, testKey)
			require.NoError(t, err)

			form := validForm()
			tt.blank(&form)
			view, err := svc.Onboard(ctx, testKey, form)
			require.NoError(t, err)
			assert.False(t, view.Authenticated)
			require.Len(t, view.Notices, 1)
			assert.Equal(t, flow.NoticeWarning, view.Notices[0].Level)
			assert.Equal(t, msgFormIncomplete, view.Notices[0].Message)

			after, err := repo.GetSession(ctx, testKey)
			require.NoError(t, err)
			assert.Equal(t, before.StateJSON, after.StateJSON)
		})
	}

	t.Run("saved profile", func(t *testing.T) {
		repo := store.NewMemory()
		svc := NewService(repo, flow.NewMachine(catalog.New(), flow.Options{RequireOnboarding: true}),
			profile.NewSaver(profile.NewRepositorySink(repo), time.Second, nil), nil, nil)

		view, err := svc.Onboard(context.Background(), testKey, validForm())
		require.NoError(t, err)
		assert.True(t, view.Authenticated)
		assert.Equal(t, "Ada", view.UserName)
		assert.Empty(t, view.Notices)

		_, err = svc.Dispatch(context.Background(), testKey, flow.Command{Type: flow.CmdStart, Task: "laundry"})
		require.NoError(t, err)

		_, err = svc.Onboard(context.Background(), testKey, validForm())
		assert.ErrorIs(t, err, flow.ErrInvalidTransition)
	})

	t.Run("sink failure still signs in", func(t *testing.T) {
		svc, _, _, _ := newTestService(t, flow.Options{RequireOnboarding: true}, failingSink{})

		view, err := svc.Onboard(context.Background(), testKey, validForm())
		require.NoError(t, err)
		assert.True(t, view.Authenticated)
		require.Len(t, view.Notices, 1)
		assert.Equal(t, flow.NoticeInfo, view.Notices[0].Level)
		assert.Equal(t, msgSavedLocally, view.Notices[0].Message)
	})
}

func TestServiceConcurrentCommandsSerialize(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc, _, _, _ := newTestService(t, flow.Options{}, nil)
	ctx := context.Background()
	_, err := svc.Dispatch(ctx, testKey, flow.Command{Type: flow.CmdStart, Task: "laundry"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Dispatch(ctx, testKey, flow.Command{Type: flow.CmdNotSure})
		}()
	}
	wg.Wait()

	view, err := svc.View(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 5+8, view.StepCount)
	assert.Equal(t, 0, svc.locks.size())
}
