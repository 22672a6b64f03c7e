// Package chat drives the request/response cycle around a conversation:
// optimistic append of the user's question, one in-flight backend call at a
// time, and reconciliation of the originating session with the outcome.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"SQLChat/internal/backend"
	"SQLChat/internal/config"
	"SQLChat/internal/render"
	"SQLChat/internal/session"
)

// Fixed suggestion prompts, offered when a session is empty. Sending one is
// identical to typing it.
const (
	SuggestionSchema = "Show table schema"
	SuggestionUsers  = "List top 5 users"
)

// Querier is the backend contract the orchestrator depends on.
// *backend.Client satisfies it.
type Querier interface {
	Query(ctx context.Context, req backend.QueryRequest) (*backend.QueryResponse, error)
}

// App wires the stores, the backend client and the renderer together.
type App struct {
	sessions *session.Store
	configs  *config.Store
	client   Querier
	renderer *render.Renderer
	logger   *slog.Logger

	mu      sync.Mutex
	cfg     config.Config
	pending bool
}

// New creates the application around already-constructed stores.
func New(sessions *session.Store, configs *config.Store, client Querier, renderer *render.Renderer, logger *slog.Logger) *App {
	return &App{
		sessions: sessions,
		configs:  configs,
		client:   client,
		renderer: renderer,
		logger:   logger,
		cfg:      configs.Load(),
	}
}

// Config returns the current configuration.
func (a *App) Config() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// SetConfigField updates one configuration field and persists the whole
// config immediately. Field values are not validated here.
func (a *App) SetConfigField(field, value string) error {
	a.mu.Lock()
	switch field {
	case "database_url":
		a.cfg.DatabaseURL = value
	case "api_key":
		a.cfg.APIKey = value
	case "provider":
		a.cfg.Provider = value
	case "sql_mode":
		a.cfg.SQLMode = value
	}
	cfg := a.cfg
	a.mu.Unlock()
	return a.configs.Save(cfg)
}

// Pending reports whether a request is in flight.
func (a *App) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// Send runs one full request cycle for the active session and returns the
// assistant (or error) message. It returns false without any state change
// when the trimmed text is empty or another request is already pending;
// pending sends are dropped, not queued.
//
// The user's question is written to the store before the network call so it
// is visible immediately, and is never rolled back. The response is appended
// to that captured log and written back addressed by the captured session
// ID, so it lands in the session that issued it even if the active session
// changed mid-flight.
func (a *App) Send(ctx context.Context, text string) (session.Message, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return session.Message{}, false
	}

	a.mu.Lock()
	if a.pending {
		a.mu.Unlock()
		a.logger.Debug("send ignored, request already pending")
		return session.Message{}, false
	}
	a.pending = true
	cfg := a.cfg
	a.mu.Unlock()

	active := a.sessions.Active()
	userMsg := session.Message{Role: session.RoleUser, Content: text}
	optimistic := append(active.Messages, userMsg)
	a.sessions.ReplaceMessages(active.ID, optimistic, text)

	a.logger.Info("sending query", "session_id", active.ID, "provider", cfg.Provider)

	var reply session.Message
	resp, err := a.client.Query(ctx, buildRequest(text, optimistic, cfg))
	if err != nil {
		a.logger.Error("query failed", "session_id", active.ID, "error", err)
		reply = session.Message{
			Role:    session.RoleAssistant,
			Content: "**Error:** " + err.Error(),
			IsError: true,
		}
	} else {
		reply = session.Message{
			Role:    session.RoleAssistant,
			Content: resp.Answer,
			SQL:     resp.SQL,
			Results: resp.Results,
			Kind:    resp.Kind,
		}
	}

	final := make([]session.Message, 0, len(optimistic)+1)
	final = append(final, optimistic...)
	final = append(final, reply)
	a.sessions.ReplaceMessages(active.ID, final, text)

	a.mu.Lock()
	a.pending = false
	a.mu.Unlock()

	return reply, true
}

// buildRequest projects the optimistic log onto the wire contract; only
// role and content travel as history.
func buildRequest(text string, history []session.Message, cfg config.Config) backend.QueryRequest {
	msgs := make([]backend.HistoryMessage, len(history))
	for i, msg := range history {
		msgs[i] = backend.HistoryMessage{Role: msg.Role, Content: msg.Content}
	}
	return backend.QueryRequest{
		Question:    text,
		ChatHistory: msgs,
		DatabaseURL: cfg.DatabaseURL,
		APIKey:      cfg.APIKey,
		Provider:    cfg.Provider,
		SQLMode:     cfg.SQLMode,
		Model:       backend.Model,
	}
}
