package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/cognify/internal/catalog"
	"github.com/ashureev/cognify/internal/flow"
	"github.com/ashureev/cognify/internal/identity"
	"github.com/ashureev/cognify/internal/live"
	"github.com/ashureev/cognify/internal/profile"
	"github.com/ashureev/cognify/internal/store"
)

func dialView(t *testing.T, ctx context.Context, url string) flow.View {
	t.Helper()
	ws, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer ws.Close(websocket.StatusNormalClosure, "")

	_, data, err := ws.Read(ctx)
	require.NoError(t, err)
	var msg struct {
		Type string    `json:"type"`
		View flow.View `json:"view"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "view", msg.Type)
	return msg.View
}

func TestLiveConnectDoesNotCountAsHesitation(t *testing.T) {
	hub := live.NewHub(nil)
	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewService(store.NewMemory(), flow.NewMachine(catalog.New(), flow.Options{Grounding: true}),
		profile.NewSaver(nil, time.Second, nil), hub, nil)
	svc.now = clock.now

	ws := live.NewHandler(hub, svc, "*", true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.ServeHTTP(w, r.WithContext(identity.WithKey(r.Context(), testKey)))
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := svc.Dispatch(ctx, testKey, flow.Command{Type: flow.CmdStart, Task: "laundry"})
	require.NoError(t, err)
	clock.advance(46 * time.Second)

	// Page load: the refresh request, then the live connection.
	view, err := svc.View(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 1, view.HesitationCount)
	assert.Equal(t, flow.InitialMentalLoad+15, view.MentalLoad)

	liveView := dialView(t, ctx, url)
	assert.Equal(t, 1, liveView.HesitationCount)
	assert.Equal(t, flow.InitialMentalLoad+15, liveView.MentalLoad)

	// A reconnect later is not a user action either.
	clock.advance(time.Minute)
	liveView = dialView(t, ctx, url)
	assert.Equal(t, 1, liveView.HesitationCount)

	stored, err := svc.Peek(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.HesitationCount)
	assert.Equal(t, flow.InitialMentalLoad+15, stored.MentalLoad)
}

func TestPeekDoesNotSave(t *testing.T) {
	svc, repo, pub, _ := newTestService(t, flow.Options{}, nil)

	view, err := svc.Peek(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "setup", string(view.Stage))

	stored, err := repo.GetSession(context.Background(), testKey)
	require.NoError(t, err)
	assert.Nil(t, stored)
	_, published := pub.last(testKey)
	assert.False(t, published)
}
