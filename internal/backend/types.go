package backend

import "SQLChat/internal/session"

// Model is the fixed model identifier sent with every query.
const Model = "llama-3.3-70b-versatile"

// HistoryMessage is one entry of the chat history sent to the backend.
// Only role and content travel; SQL and results stay client-side.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryRequest represents the request body for the NL-to-SQL endpoint.
type QueryRequest struct {
	Question    string           `json:"question"`
	ChatHistory []HistoryMessage `json:"chat_history"`
	DatabaseURL string           `json:"database_url"`
	APIKey      string           `json:"api_key"`
	Provider    string           `json:"provider"`
	SQLMode     string           `json:"sql_mode"`
	Model       string           `json:"model"`
}

// QueryResponse represents a successful response from the backend.
type QueryResponse struct {
	Answer  string        `json:"answer"`
	SQL     string        `json:"sql,omitempty"`
	Results []session.Row `json:"results,omitempty"`
	Kind    string        `json:"kind,omitempty"`
}

// errorBody is the optional structured error a failed response may carry.
type errorBody struct {
	Error string `json:"error"`
}
