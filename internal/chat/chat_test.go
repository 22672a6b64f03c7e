package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SQLChat/internal/backend"
	"SQLChat/internal/config"
	"SQLChat/internal/render"
	"SQLChat/internal/session"
	"SQLChat/internal/storage"
)

// fakeQuerier records requests and replays a canned outcome. When block is
// non-nil, Query waits on it, which lets tests hold a request in flight.
type fakeQuerier struct {
	mu      sync.Mutex
	reqs    []backend.QueryRequest
	resp    *backend.QueryResponse
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeQuerier) Query(ctx context.Context, req backend.QueryRequest) (*backend.QueryResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.resp, f.err
}

func (f *fakeQuerier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func (f *fakeQuerier) lastRequest() backend.QueryRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

func newTestApp(t *testing.T, q Querier) (*App, *session.Store) {
	t.Helper()
	kv, err := storage.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	sessions := session.NewStore(kv, logger)
	configs := config.NewStore(kv, logger)
	return New(sessions, configs, q, render.New(), logger), sessions
}

func TestSendEmptyInputIsNoop(t *testing.T) {
	fake := &fakeQuerier{resp: &backend.QueryResponse{Answer: "hi"}}
	app, sessions := newTestApp(t, fake)

	for _, input := range []string{"", "   ", "\t\n"} {
		_, sent := app.Send(context.Background(), input)
		require.False(t, sent)
	}

	require.Zero(t, fake.calls(), "no network call for empty input")
	require.Empty(t, sessions.Active().Messages)
	require.False(t, app.Pending())
}

func TestSendSuccessAppendsAssistantMessage(t *testing.T) {
	fake := &fakeQuerier{resp: &backend.QueryResponse{
		Answer:  "There are 2 users",
		SQL:     "SELECT COUNT(*) FROM users",
		Results: []session.Row{session.Row(`[2]`)},
		Kind:    "select",
	}}
	app, sessions := newTestApp(t, fake)

	reply, sent := app.Send(context.Background(), "How many users?")
	require.True(t, sent)

	msgs := sessions.Active().Messages
	require.Len(t, msgs, 2, "optimistic log plus one assistant message")
	require.Equal(t, session.RoleUser, msgs[0].Role)
	require.Equal(t, "How many users?", msgs[0].Content)
	require.Equal(t, session.RoleAssistant, msgs[1].Role)
	require.Equal(t, "There are 2 users", msgs[1].Content)
	require.Equal(t, "SELECT COUNT(*) FROM users", msgs[1].SQL)
	require.Len(t, msgs[1].Results, 1)
	require.Equal(t, "select", msgs[1].Kind)
	require.False(t, msgs[1].IsError)
	require.Equal(t, msgs[1], reply)
	require.False(t, app.Pending())
}

func TestSendFailureAppendsErrorMessage(t *testing.T) {
	fake := &fakeQuerier{err: errors.New("connection refused")}
	app, sessions := newTestApp(t, fake)

	reply, sent := app.Send(context.Background(), "How many users?")
	require.True(t, sent)

	msgs := sessions.Active().Messages
	require.Len(t, msgs, 2)
	require.Equal(t, "How many users?", msgs[0].Content, "optimistic message is never rolled back")
	require.True(t, msgs[1].IsError)
	require.Equal(t, "**Error:** connection refused", msgs[1].Content)
	require.Empty(t, msgs[1].SQL)
	require.Nil(t, msgs[1].Results)
	require.Equal(t, msgs[1], reply)
	require.False(t, app.Pending())
}

func TestSendSingleFlight(t *testing.T) {
	fake := &fakeQuerier{
		resp:    &backend.QueryResponse{Answer: "done"},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	app, _ := newTestApp(t, fake)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, sent := app.Send(context.Background(), "first")
		require.True(t, sent)
	}()

	<-fake.started
	require.True(t, app.Pending())

	for i := 0; i < 5; i++ {
		_, sent := app.Send(context.Background(), "rapid follow-up")
		require.False(t, sent, "sends while pending are dropped, not queued")
	}

	close(fake.block)
	wg.Wait()

	require.Equal(t, 1, fake.calls(), "exactly one network call")
	require.False(t, app.Pending())
}

func TestResponseLandsInOriginatingSession(t *testing.T) {
	fake := &fakeQuerier{
		resp:    &backend.QueryResponse{Answer: "late answer"},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	app, sessions := newTestApp(t, fake)
	origin := sessions.ActiveID()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.Send(context.Background(), "slow question")
	}()

	<-fake.started
	fresh := sessions.Create() // user switches away mid-flight
	close(fake.block)
	wg.Wait()

	require.Equal(t, fresh.ID, sessions.ActiveID())
	require.Empty(t, sessions.Active().Messages, "new session untouched")

	for _, sess := range sessions.Sessions() {
		if sess.ID == origin {
			require.Len(t, sess.Messages, 2)
			require.Equal(t, "late answer", sess.Messages[1].Content)
		}
	}
}

func TestRequestCarriesOptimisticHistoryAndConfig(t *testing.T) {
	fake := &fakeQuerier{resp: &backend.QueryResponse{Answer: "a"}}
	app, _ := newTestApp(t, fake)
	require.NoError(t, app.SetConfigField("provider", config.ProviderGemini))
	require.NoError(t, app.SetConfigField("sql_mode", config.SQLModeReadOnly))

	_, sent := app.Send(context.Background(), "first question")
	require.True(t, sent)
	_, sent = app.Send(context.Background(), "second question")
	require.True(t, sent)

	req := fake.lastRequest()
	require.Equal(t, "second question", req.Question)
	// History is the optimistic log: prior exchange plus the pending question.
	require.Len(t, req.ChatHistory, 3)
	require.Equal(t, "second question", req.ChatHistory[2].Content)
	require.Equal(t, config.ProviderGemini, req.Provider)
	require.Equal(t, config.SQLModeReadOnly, req.SQLMode)
	require.Equal(t, backend.Model, req.Model)
}

func TestFirstMessageScenario(t *testing.T) {
	// First send in a fresh session with no database_url configured: the
	// optimistic message appears, the request carries the empty URL, the
	// failure becomes an isError reply and the title is derived.
	fake := &fakeQuerier{err: errors.New("no database url configured")}
	app, sessions := newTestApp(t, fake)

	_, sent := app.Send(context.Background(), "Show table schema")
	require.True(t, sent)

	require.Equal(t, "Show table schema", sessions.Active().Title)
	require.Empty(t, fake.lastRequest().DatabaseURL)

	msgs := sessions.Active().Messages
	require.Len(t, msgs, 2)
	require.Equal(t, "Show table schema", msgs[0].Content)
	require.True(t, msgs[1].IsError)
}

func TestSuggestionSendIsOrdinarySend(t *testing.T) {
	fake := &fakeQuerier{resp: &backend.QueryResponse{Answer: "schema here"}}
	app, sessions := newTestApp(t, fake)

	_, sent := app.Send(context.Background(), SuggestionSchema)
	require.True(t, sent)
	require.Equal(t, SuggestionSchema, sessions.Active().Messages[0].Content)
	require.Equal(t, SuggestionSchema, sessions.Active().Title)
}

func TestSetConfigFieldPersists(t *testing.T) {
	fake := &fakeQuerier{resp: &backend.QueryResponse{Answer: "a"}}
	app, _ := newTestApp(t, fake)

	require.NoError(t, app.SetConfigField("database_url", "postgresql://host/db"))
	require.NoError(t, app.SetConfigField("api_key", "sk-123"))

	cfg := app.Config()
	require.Equal(t, "postgresql://host/db", cfg.DatabaseURL)
	require.Equal(t, "sk-123", cfg.APIKey)
}

func TestPendingClearsEvenAfterSlowFailure(t *testing.T) {
	fake := &fakeQuerier{
		err:     errors.New("timeout-ish"),
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	app, _ := newTestApp(t, fake)

	done := make(chan struct{})
	go func() {
		app.Send(context.Background(), "q")
		close(done)
	}()

	<-fake.started
	close(fake.block)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("send did not complete")
	}
	require.False(t, app.Pending())
}
